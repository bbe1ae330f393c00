package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
)

// cacheKey identifies a cached buffer. slot is the number of earlier uses of the same
// (target, pipeline, batch, variable) in the current frame, so two standard passes that
// share a pipeline never write the same buffer within one submission. Slots above 0 are
// released once a frame no longer claims them.
type cacheKey struct {
	target   Target
	pipeline string
	batch    uint64
	name     string
	slot     int
}

type constantEntry struct {
	buffer gpu.Buffer
	size   uint64
}

type instanceEntry struct {
	buffer   gpu.Buffer
	stride   uint32
	capacity uint32
}

// bufferCache owns every constant and instance buffer the renderer allocates. It is only
// touched from RenderFrame.
type bufferCache struct {
	device    gpu.Device
	constants map[cacheKey]*constantEntry
	instances map[cacheKey]*instanceEntry

	constantUses map[cacheKey]int
	instanceUses map[cacheKey]int
}

func newBufferCache(device gpu.Device) *bufferCache {
	return &bufferCache{
		device:    device,
		constants: make(map[cacheKey]*constantEntry),
		instances: make(map[cacheKey]*instanceEntry),

		constantUses: make(map[cacheKey]int),
		instanceUses: make(map[cacheKey]int),
	}
}

// beginFrame releases the extra slots the previous frame left unclaimed and restarts
// the per-frame slot numbering. Slot 0 of a variable lives until its target or the
// pipelines go away.
func (c *bufferCache) beginFrame() int {
	n := 0
	for k, e := range c.constants {
		if stale(c.constantUses, k) {
			e.buffer.Release()
			delete(c.constants, k)
			n++
		}
	}
	for k, e := range c.instances {
		if stale(c.instanceUses, k) {
			e.buffer.Release()
			delete(c.instances, k)
			n++
		}
	}
	clear(c.constantUses)
	clear(c.instanceUses)
	return n
}

func stale(uses map[cacheKey]int, key cacheKey) bool {
	if key.slot == 0 {
		return false
	}
	base := key
	base.slot = 0
	return uses[base] <= key.slot
}

// constantKey claims the next constant buffer slot of a variable in this frame.
func (c *bufferCache) constantKey(target Target, pipelineName string, batch uint64, name string) cacheKey {
	return claim(c.constantUses, cacheKey{target: target, pipeline: pipelineName, batch: batch, name: name})
}

// instanceKey claims the next instance buffer slot of a variable in this frame.
func (c *bufferCache) instanceKey(target Target, pipelineName string, batch uint64, name string) cacheKey {
	return claim(c.instanceUses, cacheKey{target: target, pipeline: pipelineName, batch: batch, name: name})
}

func claim(uses map[cacheKey]int, base cacheKey) cacheKey {
	key := base
	key.slot = uses[base]
	uses[base]++
	return key
}

// constant returns the constant buffer for key, replacing it when its size changed.
func (c *bufferCache) constant(key cacheKey, size uint64) (gpu.Buffer, error) {
	e, ok := c.constants[key]
	if ok && e.size == size && e.buffer != nil {
		return e.buffer, nil
	}
	b, err := c.device.CreateBuffer(&gpu.BufferDesc{
		Label: fmt.Sprintf("%s/%s/%s", labelOf(key.target), key.pipeline, key.name),
		Size:  size,
		Usage: gpu.BufferUsageConstant,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate constant buffer %s: %w", key.name, err)
	}
	if ok && e.buffer != nil {
		e.buffer.Release()
	}
	c.constants[key] = &constantEntry{buffer: b, size: size}
	return b, nil
}

// instance returns an instance buffer holding at least count elements of stride bytes.
// Capacity only grows; a stride change reallocates at the requested count.
func (c *bufferCache) instance(key cacheKey, stride, count uint32) (gpu.Buffer, error) {
	count = max(count, 1)
	e, ok := c.instances[key]
	if ok && e.buffer != nil && e.stride == stride && e.capacity >= count {
		return e.buffer, nil
	}
	capacity := count
	if ok && e.stride == stride {
		capacity = max(capacity, e.capacity)
	}
	b, err := c.device.CreateBuffer(&gpu.BufferDesc{
		Label:  fmt.Sprintf("%s/%s/%s", labelOf(key.target), key.pipeline, key.name),
		Size:   uint64(stride) * uint64(capacity),
		Usage:  gpu.BufferUsageStructured,
		Stride: stride,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to allocate instance buffer %s: %w", key.name, err)
	}
	if ok && e.buffer != nil {
		e.buffer.Release()
	}
	c.instances[key] = &instanceEntry{buffer: b, stride: stride, capacity: capacity}
	return b, nil
}

// dropTarget releases every buffer cached for target.
func (c *bufferCache) dropTarget(target Target) int {
	n := 0
	for k, e := range c.constants {
		if k.target == target {
			e.buffer.Release()
			delete(c.constants, k)
			n++
		}
	}
	for k, e := range c.instances {
		if k.target == target {
			e.buffer.Release()
			delete(c.instances, k)
			n++
		}
	}
	return n
}

// releaseAll releases every cached buffer.
func (c *bufferCache) releaseAll() int {
	n := len(c.constants) + len(c.instances)
	for _, e := range c.constants {
		e.buffer.Release()
	}
	for _, e := range c.instances {
		e.buffer.Release()
	}
	clear(c.constants)
	clear(c.instances)
	return n
}

func labelOf(t Target) string {
	if t == nil {
		return ""
	}
	return t.Label()
}
