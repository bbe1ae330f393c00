package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
)

// Target is where a RenderPass draws: a WindowTarget, a *ScreenBuffer or a *ShadowMapBuffer.
// Targets are compared by identity, so implementations must be pointer types.
type Target interface {
	Label() string
}

// WindowTarget is an on-screen target. The renderer records into the command list of the
// frame its surface has in flight.
type WindowTarget interface {
	Target

	// Surface returns the swap chain of the window, nil before it is created.
	Surface() gpu.Surface

	// IsPendingDestroy reports whether the window is closing.
	IsPendingDestroy() bool

	// IsMinimized reports whether the window is iconified.
	IsMinimized() bool

	// IsVisible reports whether the window is shown.
	IsVisible() bool
}

type targetKind int

const (
	targetWindow targetKind = iota
	targetOffscreen
	targetShadowMap
	targetKindCount
)

func kindOf(t Target) (targetKind, bool) {
	switch v := t.(type) {
	case *ScreenBuffer:
		return targetOffscreen, v != nil
	case *ShadowMapBuffer:
		return targetShadowMap, v != nil
	case WindowTarget:
		return targetWindow, true
	}
	return 0, false
}

// recordState is the per-frame recording of a buffer-backed target.
type recordState struct {
	cl      gpu.CommandList
	pb      pipeline.Binder
	started bool
	// discard drops the recording at the end of the frame
	discard bool
}

func (s *recordState) reset() {
	*s = recordState{}
}

// fail marks the recording discard. Window passes carry a nil state.
func (s *recordState) fail() {
	if s != nil {
		s.discard = true
	}
}

// ScreenBuffer is an offscreen color target. Passes draw into it during the offscreen
// bracket; its post effects run afterwards and read from it.
type ScreenBuffer struct {
	target  gpu.RenderTarget
	effects []PostEffect
	state   recordState

	// presented is set when the last frame's recording was submitted
	presented bool
}

// NewScreenBuffer wraps a render target for offscreen passes.
//
// Parameters:
//   - t: the color (and optional depth) target passes draw into
//
// Returns:
//   - *ScreenBuffer: the new buffer
func NewScreenBuffer(t gpu.RenderTarget) *ScreenBuffer {
	return &ScreenBuffer{target: t}
}

func (b *ScreenBuffer) Label() string {
	if b.target == nil {
		return ""
	}
	return b.target.Label()
}

// RenderTarget returns the wrapped target.
func (b *ScreenBuffer) RenderTarget() gpu.RenderTarget { return b.target }

// ColorView returns the sampled view of the buffer, for effects and later passes to read.
func (b *ScreenBuffer) ColorView() gpu.DescriptorHandle {
	if b.target == nil {
		return nil
	}
	return b.target.ColorView()
}

// Presented reports whether the last frame's recording was submitted. A discarded or
// empty frame leaves the previous contents in place.
func (b *ScreenBuffer) Presented() bool { return b.presented }

// AddPostEffect appends an effect to the chain run by a persistent screen pass.
//
// Parameters:
//   - fx: the effect to append
func (b *ScreenBuffer) AddPostEffect(fx PostEffect) {
	b.effects = append(b.effects, fx)
}

// ClearPostEffects removes every effect.
func (b *ScreenBuffer) ClearPostEffects() {
	b.effects = nil
}

// PostEffects returns a copy of the effect chain in execution order.
func (b *ScreenBuffer) PostEffects() []PostEffect {
	return append([]PostEffect(nil), b.effects...)
}

// begin starts recording, clearing the target, on first use in a frame.
func (b *ScreenBuffer) begin(m pipeline.Manager) (gpu.CommandList, pipeline.Binder, bool) {
	if b.state.started {
		return b.state.cl, b.state.pb, b.state.cl != nil
	}
	if b.target == nil {
		return nil, nil, false
	}
	cl, err := b.target.Begin(true)
	if err != nil || cl == nil {
		return nil, nil, false
	}
	b.state.started = true
	b.state.cl = cl
	b.state.pb = pipeline.NewBinder(m)
	b.state.pb.SetCommandList(cl)
	return cl, b.state.pb, true
}

// end finishes the frame's recording. ok is false when nothing should be submitted.
func (b *ScreenBuffer) end() (gpu.CommandBuffer, bool) {
	defer b.state.reset()
	if !b.state.started {
		b.presented = false
		return nil, false
	}
	cb, err := b.target.End()
	if err != nil || b.state.discard {
		b.presented = false
		return nil, false
	}
	b.presented = true
	return cb, true
}

// ShadowMapBuffer is a depth-only target recorded at the start of every frame, before any
// offscreen or window pass samples it.
type ShadowMapBuffer struct {
	target gpu.RenderTarget
	state  recordState

	presented bool
}

// NewShadowMapBuffer wraps a depth-only render target for shadow passes.
//
// Parameters:
//   - t: the depth target
//
// Returns:
//   - *ShadowMapBuffer: the new buffer
func NewShadowMapBuffer(t gpu.RenderTarget) *ShadowMapBuffer {
	return &ShadowMapBuffer{target: t}
}

func (b *ShadowMapBuffer) Label() string {
	if b.target == nil {
		return ""
	}
	return b.target.Label()
}

// RenderTarget returns the wrapped target.
func (b *ShadowMapBuffer) RenderTarget() gpu.RenderTarget { return b.target }

// DepthView returns the sampled depth view for shadow lookups.
func (b *ShadowMapBuffer) DepthView() gpu.DescriptorHandle {
	if b.target == nil {
		return nil
	}
	return b.target.DepthView()
}

// Presented reports whether the last frame's recording was submitted.
func (b *ShadowMapBuffer) Presented() bool { return b.presented }

// Recording reports whether the buffer is recording the current frame.
func (b *ShadowMapBuffer) Recording() bool { return b.state.started }

func (b *ShadowMapBuffer) begin(m pipeline.Manager) bool {
	b.state.reset()
	if b.target == nil {
		return false
	}
	cl, err := b.target.Begin(true)
	if err != nil || cl == nil {
		return false
	}
	b.state.started = true
	b.state.cl = cl
	b.state.pb = pipeline.NewBinder(m)
	b.state.pb.SetCommandList(cl)
	return true
}

func (b *ShadowMapBuffer) end() (gpu.CommandBuffer, bool) {
	defer b.state.reset()
	if !b.state.started {
		b.presented = false
		return nil, false
	}
	cb, err := b.target.End()
	if err != nil || b.state.discard {
		b.presented = false
		return nil, false
	}
	b.presented = true
	return cb, true
}

// PostEffect is one full-screen step of a ScreenBuffer's effect chain. It is drawn once,
// with a fresh pipeline binder, into Output or into the list Begin returns.
type PostEffect struct {
	PipelineName string
	BatchKey     uint64

	ConstantBuffers []ConstantBufferRequirement
	InstanceBuffers []InstanceBufferRequirement

	UpdateConstantBuffers UpdateConstantBuffersFunc
	SubmitInstance        SubmitInstanceFunc
	BatchedRender         BatchedRenderFunc
	RenderCommand         RenderCommandFunc

	// Output is the target the effect draws into when Begin is nil.
	Output gpu.RenderTarget
	// Begin replaces Output.Begin; it returns the list to record into.
	Begin func() (gpu.CommandList, bool)
	// End finishes a recording started by Begin. ok is false when the effect failed.
	End func(cl gpu.CommandList, ok bool) gpu.CommandBuffer
}

// ScreenPass runs the post effects of Buffer once per frame.
type ScreenPass struct {
	Buffer *ScreenBuffer
}
