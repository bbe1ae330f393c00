package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

type wgpuRenderTarget struct {
	mu     sync.Mutex
	device *wgpuDevice
	desc   RenderTargetDesc

	colorTex  *wgpu.Texture
	color     *wgpuDescriptor
	depthTex  *wgpu.Texture
	depth     *wgpuDescriptor
	recording *wgpuCommandList
}

var _ RenderTarget = &wgpuRenderTarget{}

func (d *wgpuDevice) createAttachment(label string, width, height uint32, format wgpu.TextureFormat) (*wgpu.Texture, *wgpu.TextureView, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, nil, fmt.Errorf("failed to create %s view: %w", label, err)
	}
	return tex, view, nil
}

func (t *wgpuRenderTarget) create() error {
	if t.desc.ColorFormat != FormatUnknown {
		format, err := toWGPUTextureFormat(t.desc.ColorFormat)
		if err != nil {
			return fmt.Errorf("render target %q: %w", t.desc.Label, err)
		}
		tex, view, err := t.device.createAttachment(t.desc.Label+" Color", t.desc.Width, t.desc.Height, format)
		if err != nil {
			return err
		}
		t.colorTex = tex
		t.color = &wgpuDescriptor{id: t.device.id(), texture: tex, view: view}
	}
	if t.desc.DepthFormat != FormatUnknown {
		format, err := toWGPUTextureFormat(t.desc.DepthFormat)
		if err != nil {
			t.releaseAttachments()
			return fmt.Errorf("render target %q: %w", t.desc.Label, err)
		}
		tex, view, err := t.device.createAttachment(t.desc.Label+" Depth", t.desc.Width, t.desc.Height, format)
		if err != nil {
			t.releaseAttachments()
			return err
		}
		t.depthTex = tex
		t.depth = &wgpuDescriptor{id: t.device.id(), texture: tex, view: view}
	}
	return nil
}

func (t *wgpuRenderTarget) releaseAttachments() {
	for _, a := range []*wgpuDescriptor{t.color, t.depth} {
		if a == nil {
			continue
		}
		a.view.Release()
		a.texture.Release()
	}
	t.color, t.depth = nil, nil
	t.colorTex, t.depthTex = nil, nil
}

func (t *wgpuRenderTarget) Label() string  { return t.desc.Label }
func (t *wgpuRenderTarget) Width() uint32  { return t.desc.Width }
func (t *wgpuRenderTarget) Height() uint32 { return t.desc.Height }

func (t *wgpuRenderTarget) Begin(clear bool) (CommandList, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recording != nil {
		return nil, fmt.Errorf("render target %q is already recording", t.desc.Label)
	}
	var color, depth *wgpu.TextureView
	if t.color != nil {
		color = t.color.view
	}
	if t.depth != nil {
		depth = t.depth.view
	}
	list, err := newWGPUCommandList(t.device, t.desc.Label, color, depth, clear, t.desc.ClearColor, t.desc.ClearDepth)
	if err != nil {
		return nil, err
	}
	t.recording = list
	return list, nil
}

func (t *wgpuRenderTarget) End() (CommandBuffer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recording == nil {
		return nil, fmt.Errorf("render target %q is not recording", t.desc.Label)
	}
	list := t.recording
	t.recording = nil
	return list.finish()
}

func (t *wgpuRenderTarget) Recording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recording != nil
}

func (t *wgpuRenderTarget) ColorView() DescriptorHandle {
	if t.color == nil {
		return nil
	}
	return t.color
}

func (t *wgpuRenderTarget) DepthView() DescriptorHandle {
	if t.depth == nil {
		return nil
	}
	return t.depth
}

func (t *wgpuRenderTarget) Resize(width, height uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recording != nil {
		return fmt.Errorf("render target %q cannot be resized while recording", t.desc.Label)
	}
	if width == 0 || height == 0 {
		return errors.New("render target size must be non-zero")
	}
	t.releaseAttachments()
	t.desc.Width, t.desc.Height = width, height
	return t.create()
}

func (t *wgpuRenderTarget) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseAttachments()
}

// wgpuSurface is the swap chain of one window plus its depth attachment.
type wgpuSurface struct {
	mu        sync.Mutex
	device    *wgpuDevice
	surface   *wgpu.Surface
	format    wgpu.TextureFormat
	alphaMode wgpu.CompositeAlphaMode
	width     uint32
	height    uint32

	depthTex   *wgpu.Texture
	depthView  *wgpu.TextureView
	frameTex   *wgpu.Texture
	frameView  *wgpu.TextureView
	list       *wgpuCommandList
	clearColor [4]float32
}

var _ Surface = &wgpuSurface{}

func (s *wgpuSurface) Configure(width, height uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width == 0 || height == 0 {
		return errors.New("surface size must be non-zero")
	}
	if s.list != nil {
		return errors.New("surface cannot be reconfigured during a frame")
	}
	s.surface.Configure(s.device.adapter, s.device.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      s.format,
		Width:       width,
		Height:      height,
		PresentMode: s.device.presentMode,
		AlphaMode:   s.alphaMode,
	})
	if s.depthView != nil {
		s.depthView.Release()
		s.depthTex.Release()
	}
	tex, view, err := s.device.createAttachment("Surface Depth", width, height, wgpu.TextureFormatDepth32Float)
	if err != nil {
		s.depthTex, s.depthView = nil, nil
		return err
	}
	s.depthTex, s.depthView = tex, view
	s.width, s.height = width, height
	return nil
}

func (s *wgpuSurface) SetClearColor(c [4]float32) {
	s.mu.Lock()
	s.clearColor = c
	s.mu.Unlock()
}

func (s *wgpuSurface) Begin() (CommandList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameTex != nil {
		return nil, errors.New("previous frame surface not yet presented")
	}
	if s.depthView == nil {
		return nil, errors.New("surface has not been configured")
	}
	tex, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	list, err := newWGPUCommandList(s.device, "Window", view, s.depthView, true, s.clearColor, 1)
	if err != nil {
		view.Release()
		tex.Release()
		return nil, err
	}
	s.frameTex, s.frameView, s.list = tex, view, list
	return list, nil
}

func (s *wgpuSurface) CommandList() CommandList {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.list == nil {
		return nil
	}
	return s.list
}

func (s *wgpuSurface) End() (CommandBuffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.list == nil {
		return nil, errors.New("surface is not recording")
	}
	list := s.list
	s.list = nil
	cb, err := list.finish()
	if err != nil {
		s.releaseFrame()
		return nil, err
	}
	return cb, nil
}

func (s *wgpuSurface) Present() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frameTex == nil {
		return
	}
	s.surface.Present()
	s.releaseFrame()
}

func (s *wgpuSurface) releaseFrame() {
	if s.frameView != nil {
		s.frameView.Release()
		s.frameView = nil
	}
	if s.frameTex != nil {
		s.frameTex.Release()
		s.frameTex = nil
	}
}

func (s *wgpuSurface) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseFrame()
	if s.depthView != nil {
		s.depthView.Release()
		s.depthTex.Release()
		s.depthView, s.depthTex = nil, nil
	}
	s.surface.Release()
}
