package renderer

// passGroup holds the standard passes and instanced batches of one (object type, dimension)
// pair. Batches keep the order their first pass was filed in.
type passGroup struct {
	standard []*RenderPass
	order    []BatchKey
	batches  map[BatchKey][]*RenderPass
}

func (g *passGroup) add(p *RenderPass) {
	if p.RenderType == RenderTypeStandard {
		g.standard = append(g.standard, p)
		return
	}
	key := p.batchKey()
	if g.batches == nil {
		g.batches = make(map[BatchKey][]*RenderPass)
	}
	if _, ok := g.batches[key]; !ok {
		g.order = append(g.order, key)
	}
	g.batches[key] = append(g.batches[key], p)
}

// remove drops p by identity and deletes its batch once empty.
func (g *passGroup) remove(p *RenderPass) bool {
	if p.RenderType == RenderTypeStandard {
		for i, q := range g.standard {
			if q == p {
				g.standard = append(g.standard[:i], g.standard[i+1:]...)
				return true
			}
		}
		return false
	}
	key := p.batchKey()
	batch, ok := g.batches[key]
	if !ok {
		return false
	}
	for i, q := range batch {
		if q != p {
			continue
		}
		batch = append(batch[:i], batch[i+1:]...)
		if len(batch) > 0 {
			g.batches[key] = batch
			return true
		}
		delete(g.batches, key)
		for j, k := range g.order {
			if k == key {
				g.order = append(g.order[:j], g.order[j+1:]...)
				break
			}
		}
		return true
	}
	return false
}

func (g *passGroup) empty() bool {
	return len(g.standard) == 0 && len(g.order) == 0
}

func (g *passGroup) clear() {
	*g = passGroup{}
}

// Group order within a target: system 3D, game 3D, system 2D, game 2D. Each group runs
// its standard passes before its instanced batches, giving eight buckets per target type.
const groupCount = 4

func groupIndex(p *RenderPass) int {
	i := 0
	if p.Dimension == Dimension2D {
		i = 2
	}
	if p.ObjectType == ObjectTypeGame {
		i++
	}
	return i
}

type passBuckets [groupCount]passGroup

func (b *passBuckets) add(p *RenderPass)         { b[groupIndex(p)].add(p) }
func (b *passBuckets) remove(p *RenderPass) bool { return b[groupIndex(p)].remove(p) }

func (b *passBuckets) clear() {
	for i := range b {
		b[i].clear()
	}
}

// targets returns every distinct target of the buckets in filing order.
func (b *passBuckets) targets(seen map[Target]bool, out []Target) []Target {
	visit := func(t Target) {
		if t != nil && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for i := range b {
		for _, p := range b[i].standard {
			visit(p.Target)
		}
		for _, k := range b[i].order {
			visit(k.Target)
		}
	}
	return out
}

// registry owns the persistent passes of one target kind.
type registry struct {
	next    PersistentPassHandle
	byID    map[PersistentPassHandle]*RenderPass
	buckets passBuckets
}

func newRegistry() *registry {
	return &registry{byID: make(map[PersistentPassHandle]*RenderPass)}
}

func (r *registry) register(pass RenderPass) PersistentPassHandle {
	r.next++
	p := &pass
	r.byID[r.next] = p
	r.buckets.add(p)
	return r.next
}

func (r *registry) unregister(h PersistentPassHandle) bool {
	p, ok := r.byID[h]
	if !ok {
		return false
	}
	delete(r.byID, h)
	r.buckets.remove(p)
	return true
}

// mergedGroup is the frame view of one group: persistent passes first, then the passes
// submitted for this frame. Submitted instancing passes join a persistent batch with the
// same key.
func mergedGroup(persistent, frame *passGroup) ([]*RenderPass, []BatchKey, func(BatchKey) []*RenderPass) {
	if frame.empty() {
		return persistent.standard, persistent.order, func(k BatchKey) []*RenderPass { return persistent.batches[k] }
	}
	standard := make([]*RenderPass, 0, len(persistent.standard)+len(frame.standard))
	standard = append(standard, persistent.standard...)
	standard = append(standard, frame.standard...)

	order := append([]BatchKey(nil), persistent.order...)
	for _, k := range frame.order {
		if _, ok := persistent.batches[k]; !ok {
			order = append(order, k)
		}
	}
	batch := func(k BatchKey) []*RenderPass {
		a, b := persistent.batches[k], frame.batches[k]
		if len(b) == 0 {
			return a
		}
		out := make([]*RenderPass, 0, len(a)+len(b))
		return append(append(out, a...), b...)
	}
	return standard, order, batch
}
