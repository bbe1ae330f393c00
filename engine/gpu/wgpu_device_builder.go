package gpu

import "github.com/cogentcore/webgpu/wgpu"

// WGPUDeviceOption configures NewWGPUDevice.
type WGPUDeviceOption func(*wgpuDevice)

// WithCompatibleSurface creates a surface from desc and requests an adapter able to present to it.
// Without it the device is created headless and NewWGPUDevice returns a nil Surface.
//
// Parameters:
//   - desc: the platform surface descriptor, e.g. from wgpuglfw.GetSurfaceDescriptor
//
// Returns:
//   - WGPUDeviceOption: the option
func WithCompatibleSurface(desc *wgpu.SurfaceDescriptor) WGPUDeviceOption {
	return func(d *wgpuDevice) {
		d.surfaceDesc = desc
	}
}

// WithForceFallbackAdapter requests the software adapter.
//
// Parameters:
//   - force: true to force the fallback adapter
//
// Returns:
//   - WGPUDeviceOption: the option
func WithForceFallbackAdapter(force bool) WGPUDeviceOption {
	return func(d *wgpuDevice) {
		d.forceFallback = force
	}
}

// WithVSync presents with FIFO when on and immediately when off.
//
// Parameters:
//   - on: whether presentation waits for vertical blank
//
// Returns:
//   - WGPUDeviceOption: the option
func WithVSync(on bool) WGPUDeviceOption {
	return func(d *wgpuDevice) {
		if on {
			d.presentMode = wgpu.PresentModeFifo
		} else {
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithMaxBindGroups raises the bind group limit requested from the adapter.
//
// Parameters:
//   - n: the number of bind groups (register spaces) a layout may use
//
// Returns:
//   - WGPUDeviceOption: the option
func WithMaxBindGroups(n uint32) WGPUDeviceOption {
	return func(d *wgpuDevice) {
		if n > 0 {
			d.maxBindGroups = n
		}
	}
}
