package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/binder"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
)

func (r *renderer) RenderFrame() {
	defer r.timers.Scope("RenderFrame")()

	if n := r.cache.beginFrame(); n > 0 {
		r.log.Debug("unused buffer slots released", "released", n)
	}
	if g := r.manager.Generation(); g != r.generation {
		n := r.cache.releaseAll()
		r.generation = g
		r.log.Debug("pipelines reloaded, buffer cache dropped", "generation", g, "released", n)
	}
	r.prepareWindows()

	shadows := r.bufferTargets(targetShadowMap)
	offscreen := r.bufferTargets(targetOffscreen)

	stop := r.timers.Scope("ShadowMap_AllBeginRecord")
	for _, t := range shadows {
		if sb := t.(*ShadowMapBuffer); !sb.begin(r.manager) {
			r.log.Debug("shadow map not recording", "target", sb.Label())
		}
	}
	stop()

	stop = r.timers.Scope("Offscreen_AllBeginRecord")
	for _, t := range offscreen {
		t.(*ScreenBuffer).state.reset()
	}
	stop()

	stop = r.timers.Scope("ShadowMap_Passes")
	r.runKind(targetShadowMap)
	stop()

	stop = r.timers.Scope("Offscreen_Passes")
	r.runKind(targetOffscreen)
	stop()

	stop = r.timers.Scope("ShadowMap_AllEndRecord")
	var shadowBuffers []gpu.CommandBuffer
	for _, t := range shadows {
		if cb, ok := t.(*ShadowMapBuffer).end(); ok {
			shadowBuffers = append(shadowBuffers, cb)
		}
	}
	stop()

	stop = r.timers.Scope("ShadowMap_Execute")
	r.submit("shadow map", shadowBuffers)
	stop()

	stop = r.timers.Scope("Offscreen_AllEndRecord")
	var offscreenBuffers []gpu.CommandBuffer
	for _, t := range offscreen {
		sb := t.(*ScreenBuffer)
		discard := sb.state.discard
		if cb, ok := sb.end(); ok {
			offscreenBuffers = append(offscreenBuffers, cb)
		} else if discard {
			r.log.Debug("offscreen recording discarded", "target", sb.Label())
		}
	}
	stop()

	stop = r.timers.Scope("Offscreen_Execute")
	r.submit("offscreen", offscreenBuffers)
	stop()

	r.runScreenPasses()

	stop = r.timers.Scope("Persistent_Passes")
	r.runKind(targetWindow)
	stop()

	for i := range r.frame {
		r.frame[i].clear()
	}
}

// prepareWindows points every window binder at the list of the frame its surface has in
// flight and forces the first pass of the frame to apply its pipeline.
func (r *renderer) prepareWindows() {
	for _, w := range r.windowOrder {
		b := r.windowBinders[w]
		var cl gpu.CommandList
		if s := w.Surface(); s != nil {
			cl = s.CommandList()
		}
		b.SetCommandList(cl)
	}
}

// bufferTargets lists the distinct buffer-backed targets of a kind that have passes this frame.
func (r *renderer) bufferTargets(kind targetKind) []Target {
	seen := make(map[Target]bool)
	out := r.persistent[kind].buckets.targets(seen, nil)
	return r.frame[kind].targets(seen, out)
}

func (r *renderer) submit(what string, buffers []gpu.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	if err := r.device.Submit(buffers...); err != nil {
		r.log.Error("failed to submit command buffers", "kind", what, "error", err)
	}
}

// runKind executes every pass of one target kind in bucket order.
func (r *renderer) runKind(kind targetKind) {
	persistent := &r.persistent[kind].buckets
	frame := &r.frame[kind]
	for g := range groupCount {
		standard, order, batch := mergedGroup(&persistent[g], &frame[g])
		for _, p := range standard {
			r.executeStandard(p)
		}
		for _, k := range order {
			r.executeBatch(k, batch(k))
		}
	}
}

// resolve returns the binder recording for t this frame. The returned state is nil for
// windows. ok is false when the pass must be skipped.
func (r *renderer) resolve(t Target) (pipeline.Binder, *recordState, bool) {
	switch v := t.(type) {
	case *ScreenBuffer:
		_, pb, ok := v.begin(r.manager)
		if !ok {
			v.state.fail()
			return nil, nil, false
		}
		return pb, &v.state, true
	case *ShadowMapBuffer:
		if !v.state.started {
			return nil, nil, false
		}
		return v.state.pb, &v.state, true
	case WindowTarget:
		if v.IsPendingDestroy() || v.IsMinimized() || !v.IsVisible() {
			return nil, nil, false
		}
		pb, ok := r.windowBinders[v]
		if !ok || pb.CommandList() == nil {
			return nil, nil, false
		}
		return pb, nil, true
	}
	return nil, nil, false
}

func (r *renderer) executeStandard(p *RenderPass) {
	defer r.timers.Scope("Standard_Total")()
	pb, st, ok := r.resolve(p.Target)
	if !ok {
		r.log.Debug("pass skipped, target unavailable", "target", labelOf(p.Target), "pipeline", p.PipelineName)
		return
	}
	if !r.drawStandard(p, pb) {
		r.log.Debug("pass skipped", "target", labelOf(p.Target), "pipeline", p.PipelineName)
		st.fail()
	}
}

// drawStandard records one pass as one draw with a single instance.
func (r *renderer) drawStandard(p *RenderPass, pb pipeline.Binder) bool {
	if p.BatchedRender == nil || p.RenderCommand == nil {
		return false
	}
	if err := pb.UsePipeline(p.PipelineName); err != nil {
		r.log.Debug("pipeline unavailable", "pipeline", p.PipelineName, "error", err)
		return false
	}
	svb := pb.ShaderVariableBinder()

	if !r.writeConstants(p, svb, 1, "Standard") {
		return false
	}
	if !p.BatchedRender(svb, 1) {
		return false
	}
	if len(p.InstanceBuffers) > 0 {
		if p.SubmitInstance == nil {
			return false
		}
		stop := r.timers.Scope("Standard_InstanceBuffer_Update")
		maps, buffers, ok := r.mapInstances(p, svb, 1)
		if ok {
			ok = p.SubmitInstance(maps, svb, 0)
		}
		unmapAll(buffers)
		stop()
		if !ok {
			return false
		}
	}

	defer r.timers.Scope("Standard_RenderCommand")()
	cmd := p.RenderCommand(pb)
	if cmd == nil {
		return false
	}
	c := *cmd
	c.InstanceCount = 1
	c.StartInstance = 0
	IssueRenderCommand(pb.CommandList(), c)
	return true
}

// executeBatch records every pass of an instanced batch as one draw. The first pass
// supplies the constants, the shared resources and the draw arguments.
func (r *renderer) executeBatch(key BatchKey, passes []*RenderPass) {
	defer r.timers.Scope("Instancing_Total")()
	if len(passes) == 0 {
		return
	}
	pb, st, ok := r.resolve(key.Target)
	if !ok {
		r.log.Debug("batch skipped, target unavailable", "target", labelOf(key.Target), "pipeline", key.PipelineName)
		return
	}
	if !r.drawBatch(passes, pb) {
		r.log.Debug("batch skipped", "target", labelOf(key.Target), "pipeline", key.PipelineName, "instances", len(passes))
		st.fail()
	}
}

func (r *renderer) drawBatch(passes []*RenderPass, pb pipeline.Binder) bool {
	first := passes[0]
	n := len(passes)
	if first.BatchedRender == nil || first.RenderCommand == nil {
		return false
	}
	if len(first.InstanceBuffers) > 0 && first.SubmitInstance == nil {
		return false
	}
	if err := pb.UsePipeline(first.PipelineName); err != nil {
		r.log.Debug("pipeline unavailable", "pipeline", first.PipelineName, "error", err)
		return false
	}
	svb := pb.ShaderVariableBinder()

	if !r.writeConstants(first, svb, n, "Instancing") {
		return false
	}
	if !first.BatchedRender(svb, n) {
		return false
	}

	if len(first.InstanceBuffers) > 0 {
		stop := r.timers.Scope("Instancing_InstanceBuffer_MapBind")
		maps, buffers, ok := r.mapInstances(first, svb, n)
		stop()
		if ok {
			stop = r.timers.Scope("Instancing_SubmitInstances")
			for i, p := range passes {
				if p.SubmitInstance == nil || !p.SubmitInstance(maps, svb, i) {
					ok = false
					break
				}
			}
			stop()
		}
		unmapAll(buffers)
		if !ok {
			return false
		}
	}

	defer r.timers.Scope("Instancing_RenderCommand")()
	cmd := first.RenderCommand(pb)
	if cmd == nil {
		return false
	}
	c := *cmd
	c.InstanceCount = uint32(n)
	c.StartInstance = 0
	IssueRenderCommand(pb.CommandList(), c)
	return true
}

// writeConstants maps the constant buffers of p, lets p fill them and binds them.
func (r *renderer) writeConstants(p *RenderPass, svb binder.ShaderVariableBinder, instanceCount int, scope string) bool {
	if len(p.ConstantBuffers) == 0 {
		return true
	}
	if p.UpdateConstantBuffers == nil || svb == nil {
		return false
	}

	stop := r.timers.Scope(scope + "_ConstantBuffer_Update")
	buffers := make([]gpu.Buffer, 0, len(p.ConstantBuffers))
	maps := make(map[string][]byte, len(p.ConstantBuffers))
	ok := true
	for _, req := range p.ConstantBuffers {
		key := r.cache.constantKey(p.Target, p.PipelineName, p.BatchKey, req.Name)
		b, err := r.cache.constant(key, req.ByteSize)
		if err != nil {
			r.log.Warn("constant buffer unavailable", "pipeline", p.PipelineName, "variable", req.Name, "error", err)
			ok = false
			break
		}
		data, err := b.Map()
		if err != nil {
			r.log.Warn("failed to map constant buffer", "pipeline", p.PipelineName, "variable", req.Name, "error", err)
			ok = false
			break
		}
		buffers = append(buffers, b)
		maps[req.Name] = data
	}
	if ok {
		ok = p.UpdateConstantBuffers(maps, instanceCount)
	}
	unmapAll(buffers)
	stop()
	if !ok {
		return false
	}

	defer r.timers.Scope(scope + "_ConstantBuffer_Bind")()
	for i, req := range p.ConstantBuffers {
		if !svb.Bind(req.Name, buffers[i]) {
			r.log.Debug("constant buffer not bound", "pipeline", p.PipelineName, "variable", req.Name)
			return false
		}
	}
	return true
}

// mapInstances sizes the instance buffers of p for count elements, binds them and maps
// them. The returned buffers must be unmapped by the caller, also when ok is false.
func (r *renderer) mapInstances(p *RenderPass, svb binder.ShaderVariableBinder, count int) (map[string][]byte, []gpu.Buffer, bool) {
	if svb == nil {
		return nil, nil, false
	}
	buffers := make([]gpu.Buffer, 0, len(p.InstanceBuffers))
	maps := make(map[string][]byte, len(p.InstanceBuffers))
	for _, req := range p.InstanceBuffers {
		key := r.cache.instanceKey(p.Target, p.PipelineName, p.BatchKey, req.Name)
		b, err := r.cache.instance(key, req.ElementStride, uint32(count))
		if err != nil {
			r.log.Warn("instance buffer unavailable", "pipeline", p.PipelineName, "variable", req.Name, "error", err)
			return nil, buffers, false
		}
		if !svb.BindDescriptor(req.Name, b.Descriptor()) {
			r.log.Debug("instance buffer not bound", "pipeline", p.PipelineName, "variable", req.Name)
			return nil, buffers, false
		}
		data, err := b.Map()
		if err != nil {
			r.log.Warn("failed to map instance buffer", "pipeline", p.PipelineName, "variable", req.Name, "error", err)
			return nil, buffers, false
		}
		buffers = append(buffers, b)
		maps[req.Name] = data
	}
	return maps, buffers, true
}

func unmapAll(buffers []gpu.Buffer) {
	for _, b := range buffers {
		b.Unmap()
	}
}

// runScreenPasses runs the post-effect chain of every persistent screen pass.
func (r *renderer) runScreenPasses() {
	if len(r.screenPasses) == 0 {
		return
	}
	defer r.timers.Scope("PostEffect_Passes")()
	for _, sp := range r.screenPasses {
		for _, fx := range sp.Buffer.PostEffects() {
			if fx.PipelineName == "" {
				break
			}
			if !r.runPostEffect(sp.Buffer, fx) {
				r.log.Debug("post effect chain stopped", "target", sp.Buffer.Label(), "pipeline", fx.PipelineName)
				break
			}
		}
	}
}

// runPostEffect records one effect with its own binder and submits it unless it failed.
func (r *renderer) runPostEffect(src *ScreenBuffer, fx PostEffect) bool {
	stop := r.timers.Scope("PostEffect_AllBeginRecord")
	var cl gpu.CommandList
	switch {
	case fx.Begin != nil:
		var ok bool
		if cl, ok = fx.Begin(); !ok {
			cl = nil
		}
	case fx.Output != nil:
		var err error
		if cl, err = fx.Output.Begin(true); err != nil {
			r.log.Debug("post effect target unavailable", "pipeline", fx.PipelineName, "error", err)
			cl = nil
		}
	}
	stop()
	if cl == nil {
		return false
	}

	pb := pipeline.NewBinder(r.manager)
	pb.SetCommandList(cl)
	pass := RenderPass{
		Target:                src,
		PipelineName:          fx.PipelineName,
		BatchKey:              fx.BatchKey,
		ConstantBuffers:       fx.ConstantBuffers,
		InstanceBuffers:       fx.InstanceBuffers,
		UpdateConstantBuffers: fx.UpdateConstantBuffers,
		SubmitInstance:        fx.SubmitInstance,
		BatchedRender:         fx.BatchedRender,
		RenderCommand:         fx.RenderCommand,
	}
	ok := r.drawStandard(&pass, pb)

	stop = r.timers.Scope("PostEffect_AllEndRecord")
	var cb gpu.CommandBuffer
	if fx.Begin != nil {
		if fx.End != nil {
			cb = fx.End(cl, ok)
		}
	} else {
		var err error
		if cb, err = fx.Output.End(); err != nil {
			r.log.Warn("failed to end post effect recording", "pipeline", fx.PipelineName, "error", err)
			ok = false
		}
	}
	stop()

	if ok && cb != nil {
		stop = r.timers.Scope("PostEffect_Execute")
		r.submit("post effect", []gpu.CommandBuffer{cb})
		stop()
	}
	return ok
}
