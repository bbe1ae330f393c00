package shader

import (
	"regexp"
	"sort"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/gogpu/naga/ir"
)

// storageAccessRe finds the access mode of storage buffer declarations, which the IR does not keep.
var storageAccessRe = regexp.MustCompile(`var\s*<\s*storage\s*(?:,\s*(read_write|read|write)\s*)?>\s*(\w+)`)

func storageAccess(source string) map[string]string {
	out := make(map[string]string)
	for _, m := range storageAccessRe.FindAllStringSubmatch(source, -1) {
		access := m[1]
		if access == "" {
			access = "read"
		}
		out[m[2]] = access
	}
	return out
}

func toStage(s ir.ShaderStage) Stage {
	switch s {
	case ir.StageVertex:
		return StageVertex
	case ir.StageFragment:
		return StagePixel
	case ir.StageCompute:
		return StageCompute
	}
	return StageUnknown
}

// reflector walks one entry point of a lowered module.
type reflector struct {
	module  *ir.Module
	source  string
	used    map[ir.GlobalVariableHandle]bool
	visited map[ir.FunctionHandle]bool
}

// reflectEntryPoint collects the resources the entry point reaches, its located inputs and its located outputs.
func reflectEntryPoint(m *ir.Module, ep *ir.EntryPoint, source string) *Reflection {
	r := &reflector{
		module:  m,
		source:  source,
		used:    make(map[ir.GlobalVariableHandle]bool),
		visited: make(map[ir.FunctionHandle]bool),
	}
	r.walk(&ep.Function)

	out := &Reflection{ThreadGroup: ep.Workgroup}
	out.Resources = r.resources()
	for _, arg := range ep.Function.Arguments {
		out.Inputs = append(out.Inputs, r.located(arg.Name, arg.Type, arg.Binding)...)
	}
	if res := ep.Function.Result; res != nil {
		out.Outputs = r.located("", res.Type, res.Binding)
	}
	sortParameters(out.Inputs)
	sortParameters(out.Outputs)
	return out
}

// walkFunction follows a call into a function of the module.
func (r *reflector) walkFunction(h ir.FunctionHandle) {
	if r.visited[h] || int(h) >= len(r.module.Functions) {
		return
	}
	r.visited[h] = true
	r.walk(&r.module.Functions[h])
}

// walk marks the globals fn references and follows its calls. Entry points are inline
// functions, so they are walked directly rather than through a handle.
func (r *reflector) walk(fn *ir.Function) {
	for _, e := range fn.Expressions {
		switch k := e.Kind.(type) {
		case ir.ExprGlobalVariable:
			r.used[k.Variable] = true
		case ir.ExprCallResult:
			r.walkFunction(k.Function)
		}
	}
	r.walkBlock(fn.Body)
}

func (r *reflector) walkBlock(b []ir.Statement) {
	for _, st := range b {
		switch k := st.Kind.(type) {
		case ir.StmtCall:
			r.walkFunction(k.Function)
		case ir.StmtBlock:
			r.walkBlock(k.Block)
		case ir.StmtIf:
			r.walkBlock(k.Accept)
			r.walkBlock(k.Reject)
		case ir.StmtSwitch:
			for _, c := range k.Cases {
				r.walkBlock(c.Body)
			}
		case ir.StmtLoop:
			r.walkBlock(k.Body)
			r.walkBlock(k.Continuing)
		}
	}
}

func (r *reflector) resources() []Resource {
	access := storageAccess(r.source)
	var out []Resource
	for h := range r.used {
		if int(h) >= len(r.module.GlobalVariables) {
			continue
		}
		g := r.module.GlobalVariables[h]
		if g.Binding == nil {
			continue
		}
		res := Resource{
			Name:      g.Name,
			BindPoint: g.Binding.Binding,
			BindCount: 1,
			Space:     g.Binding.Group,
		}
		inner := r.inner(g.Type)
		switch g.Space {
		case ir.SpaceUniform:
			res.Kind = KindConstantBuffer
			res.Size = r.size(g.Type)
		case ir.SpaceStorage:
			res.Kind = KindStructured
			if a := access[g.Name]; a == "read_write" || a == "write" {
				res.Kind = KindUAVStructured
			}
			res.Hint = gpu.HintStructuredBuffer
			res.Size = r.size(g.Type)
			if arr, ok := inner.(ir.ArrayType); ok {
				res.Size = arr.Stride
				if res.Size == 0 {
					res.Size = r.size(arr.Base)
				}
			}
		case ir.SpaceHandle:
			switch t := inner.(type) {
			case ir.SamplerType:
				res.Kind = KindSampler
				if t.Comparison {
					res.Hint = gpu.HintComparisonSampler
				}
			case ir.ImageType:
				res.Kind = KindTexture
				res.Hint = imageHint(t)
				if t.Class == ir.ImageClassStorage {
					res.Kind = KindUAVTyped
					res.Hint = gpu.HintStorageTexture
				}
			default:
				continue
			}
		default:
			continue
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Space != out[j].Space {
			return out[i].Space < out[j].Space
		}
		if out[i].BindPoint != out[j].BindPoint {
			return out[i].BindPoint < out[j].BindPoint
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func imageHint(t ir.ImageType) gpu.ResourceHint {
	if t.Class == ir.ImageClassDepth {
		return gpu.HintDepthTexture
	}
	switch t.Dim {
	case ir.DimCube:
		return gpu.HintTextureCube
	case ir.Dim3D:
		return gpu.HintTexture3D
	}
	if t.Arrayed {
		return gpu.HintTexture2DArray
	}
	return gpu.HintTexture2D
}

func (r *reflector) inner(h ir.TypeHandle) ir.TypeInner {
	if int(h) >= len(r.module.Types) {
		return nil
	}
	return r.module.Types[h].Inner
}

// size returns the host-shareable byte size of a type, 0 for runtime-sized arrays and handles.
func (r *reflector) size(h ir.TypeHandle) uint32 {
	switch t := r.inner(h).(type) {
	case ir.ScalarType:
		return uint32(t.Width)
	case ir.AtomicType:
		return uint32(t.Scalar.Width)
	case ir.VectorType:
		return uint32(t.Size) * uint32(t.Scalar.Width)
	case ir.MatrixType:
		rows := uint32(t.Rows)
		if rows == 3 {
			rows = 4
		}
		return uint32(t.Columns) * rows * uint32(t.Scalar.Width)
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return 0
		}
		stride := t.Stride
		if stride == 0 {
			stride = r.size(t.Base)
		}
		return *t.Size.Constant * stride
	case ir.StructType:
		if t.Span != 0 {
			return t.Span
		}
		var end uint32
		for _, m := range t.Members {
			if e := m.Offset + r.size(m.Type); e > end {
				end = e
			}
		}
		return end
	}
	return 0
}

// located returns the parameters of a value with a location binding, flattening struct members.
func (r *reflector) located(name string, h ir.TypeHandle, binding *ir.Binding) []Parameter {
	if binding != nil {
		loc, ok := (*binding).(ir.LocationBinding)
		if !ok {
			return nil
		}
		p, ok := r.parameter(name, h, loc.Location)
		if !ok {
			return nil
		}
		return []Parameter{p}
	}
	st, ok := r.inner(h).(ir.StructType)
	if !ok {
		return nil
	}
	var out []Parameter
	for _, m := range st.Members {
		if m.Binding == nil {
			continue
		}
		loc, ok := (*m.Binding).(ir.LocationBinding)
		if !ok {
			continue
		}
		if p, ok := r.parameter(m.Name, m.Type, loc.Location); ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *reflector) parameter(name string, h ir.TypeHandle, location uint32) (Parameter, bool) {
	var scalar ir.ScalarType
	components := 1
	switch t := r.inner(h).(type) {
	case ir.ScalarType:
		scalar = t
	case ir.VectorType:
		scalar = t.Scalar
		components = int(t.Size)
	default:
		return Parameter{}, false
	}
	p := Parameter{
		SemanticName: name,
		Location:     location,
		UsageMask:    uint8(1<<components - 1),
	}
	switch scalar.Kind {
	case ir.ScalarSint:
		p.ComponentType = gpu.ComponentSint
	case ir.ScalarUint:
		p.ComponentType = gpu.ComponentUint
	default:
		p.ComponentType = gpu.ComponentFloat
	}
	return p, true
}

func sortParameters(ps []Parameter) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Location < ps[j].Location })
}
