// Package gpu is the device layer the renderer records against. It owns resource and
// pipeline creation, command recording for window, offscreen and shadow-map targets,
// and submission. Two backends implement it: a WebGPU backend for real frames and a
// headless NullDevice that records every call.
package gpu

import "errors"

// ErrUnsupported is returned when a backend cannot express a requested feature.
var ErrUnsupported = errors.New("gpu: unsupported by backend")

// BackendType identifies the device implementation.
type BackendType int

const (
	// BackendTypeWGPU selects the WebGPU device.
	BackendTypeWGPU BackendType = iota
	// BackendTypeNull selects the headless recording device.
	BackendTypeNull
)

// Device creates GPU objects and submits recorded work.
type Device interface {
	// Backend returns the implementation type of the device.
	//
	// Returns:
	//   - BackendType: the backend
	Backend() BackendType

	// CreateLayout creates a binding layout from its description.
	//
	// Parameters:
	//   - desc: the parameters and static samplers of the layout
	//
	// Returns:
	//   - Layout: the created layout
	//   - error: error if the description cannot be expressed by the backend
	CreateLayout(desc *LayoutDesc) (Layout, error)

	// CreateRenderPipeline creates a render PSO.
	//
	// Parameters:
	//   - desc: the stages, fixed-function state and layout of the pipeline
	//
	// Returns:
	//   - PipelineState: the created pipeline
	//   - error: error if creation fails
	CreateRenderPipeline(desc *RenderPipelineDesc) (PipelineState, error)

	// CreateComputePipeline creates a compute PSO.
	//
	// Parameters:
	//   - desc: the compute stage and layout
	//
	// Returns:
	//   - PipelineState: the created pipeline
	//   - error: error if creation fails
	CreateComputePipeline(desc *ComputePipelineDesc) (PipelineState, error)

	// CreateBuffer allocates a CPU-writable buffer.
	// Structured buffers also get a GPU-visible descriptor for table binds.
	//
	// Parameters:
	//   - desc: size, usage and stride of the buffer
	//
	// Returns:
	//   - Buffer: the allocated buffer
	//   - error: error if allocation fails
	CreateBuffer(desc *BufferDesc) (Buffer, error)

	// CreateRenderTarget creates an offscreen color and/or depth target.
	// A target with no color format is depth-only (shadow map).
	//
	// Parameters:
	//   - desc: size, formats and clear values
	//
	// Returns:
	//   - RenderTarget: the created target
	//   - error: error if creation fails
	CreateRenderTarget(desc *RenderTargetDesc) (RenderTarget, error)

	// CreateTexture creates a sampled 2D texture and uploads its pixels.
	//
	// Parameters:
	//   - desc: size and format of the texture
	//   - pixels: tightly packed texel data, len == Width*Height*Format.ByteSize()
	//
	// Returns:
	//   - DescriptorHandle: the sampled view of the texture
	//   - error: error if creation fails or the pixel data is short
	CreateTexture(desc *TextureDesc, pixels []byte) (DescriptorHandle, error)

	// CreateSampler creates a sampler bound through a table.
	//
	// Parameters:
	//   - s: the sampler configuration; Register, Space and Visibility are ignored
	//
	// Returns:
	//   - DescriptorHandle: the sampler descriptor
	//   - error: error if creation fails
	CreateSampler(s StaticSampler) (DescriptorHandle, error)

	// Submit executes finished command buffers in order.
	//
	// Parameters:
	//   - buffers: the command buffers to execute; nil entries are ignored
	//
	// Returns:
	//   - error: error if submission fails
	Submit(buffers ...CommandBuffer) error

	// Release destroys the device and everything it still owns.
	Release()
}

// Layout is a created binding layout.
type Layout interface {
	Label() string
	Desc() *LayoutDesc
	Release()
}

// PipelineState is an opaque PSO handle.
type PipelineState interface {
	Label() string
	// Compute reports whether the pipeline is a compute pipeline.
	Compute() bool
	Release()
}

// Resource is anything that can be bound to a direct slot.
type Resource interface {
	// GPUAddress returns a non-zero address once the resource has GPU backing.
	GPUAddress() uint64
}

// DescriptorHandle is a GPU-visible descriptor bound through a table.
type DescriptorHandle interface {
	// GPUVisible reports whether the descriptor may be bound to a table.
	GPUVisible() bool
}

// Buffer is a CPU-writable GPU buffer.
type Buffer interface {
	Resource

	Label() string
	Size() uint64
	Usage() BufferUsage
	// Stride is the element size of a structured buffer, 0 otherwise.
	Stride() uint32
	// Capacity is Size/Stride for structured buffers, 1 otherwise.
	Capacity() uint32

	// Map returns the CPU view of the buffer contents. Writes become visible to the GPU
	// after Unmap.
	//
	// Returns:
	//   - []byte: the writable contents, len == Size
	//   - error: error if the buffer has been released
	Map() ([]byte, error)

	// Unmap flushes the CPU view to the GPU.
	Unmap()

	// Descriptor returns the table descriptor of a structured buffer, nil otherwise.
	Descriptor() DescriptorHandle

	Release()
}

// CommandBuffer is a finished recording ready for Submit.
type CommandBuffer interface {
	Label() string
}

// CommandList records commands for one target.
type CommandList interface {
	Label() string

	SetPipelineState(ps PipelineState)
	SetLayout(l Layout)
	SetTopology(t Topology)

	SetRootConstantBuffer(parameter uint32, r Resource)
	SetRootShaderResource(parameter uint32, r Resource)
	SetRootUnorderedAccess(parameter uint32, r Resource)
	// SetDescriptorTable binds h to the given slot offset of a table parameter.
	SetDescriptorTable(parameter, offset uint32, h DescriptorHandle)

	SetVertexBuffer(slot uint32, b Buffer)
	SetIndexBuffer(b Buffer)

	DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32)
	DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32)
	Dispatch(x, y, z uint32)
}

// RenderTarget is an offscreen or shadow-map target recorded one frame at a time.
type RenderTarget interface {
	Label() string
	Width() uint32
	Height() uint32

	// Begin starts recording into the target.
	//
	// Parameters:
	//   - clear: clear color and depth before the first draw
	//
	// Returns:
	//   - CommandList: the list to record into until End
	//   - error: error if the target is already recording or recording cannot start
	Begin(clear bool) (CommandList, error)

	// End finishes recording.
	//
	// Returns:
	//   - CommandBuffer: the finished recording, to be submitted
	//   - error: error if the target is not recording
	End() (CommandBuffer, error)

	// Recording reports whether Begin has been called without End.
	Recording() bool

	// ColorView returns the sampled view of the color attachment, nil for depth-only targets.
	ColorView() DescriptorHandle
	// DepthView returns the sampled view of the depth attachment, nil if there is none.
	DepthView() DescriptorHandle

	// Resize recreates the attachments at a new size. Must not be called while recording.
	Resize(width, height uint32) error

	Release()
}

// Surface is the swap chain of one window.
type Surface interface {
	// Configure (re)creates the swap chain at the given pixel size.
	Configure(width, height uint32) error

	// SetClearColor sets the color the window is cleared to at the start of each frame.
	SetClearColor(c [4]float32)

	// Begin acquires the next image and starts recording into it.
	//
	// Returns:
	//   - CommandList: the list to record the frame into
	//   - error: error if no image could be acquired
	Begin() (CommandList, error)

	// CommandList returns the list of the frame in flight, nil between frames.
	CommandList() CommandList

	// End finishes the frame recording.
	End() (CommandBuffer, error)

	// Present shows the acquired image.
	Present()

	Release()
}
