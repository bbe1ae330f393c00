package pipeline

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/binder"
)

// pipelineBinder is the implementation of the Binder interface.
type pipelineBinder struct {
	manager Manager
	cl      gpu.CommandList

	// current is the pipeline last applied to cl, empty when nothing is applied
	current string
	// invalid forces the next UsePipeline to apply even if the name is unchanged
	invalid bool

	svb binder.ShaderVariableBinder
}

// Binder tracks the pipeline applied to one command list so consecutive passes that use
// the same pipeline do not rebind it.
type Binder interface {
	// SetCommandList sets the list pipelines are applied to and invalidates the binder.
	SetCommandList(cl gpu.CommandList)

	// CommandList returns the list pipelines are applied to.
	CommandList() gpu.CommandList

	// UsePipeline applies the named pipeline unless it is already applied and the binder
	// has not been invalidated since. The pipeline's shader variable binder is pointed at
	// the command list either way.
	//
	// Parameters:
	//   - name: the pipeline name
	//
	// Returns:
	//   - error: error if no command list is set or the pipeline is unknown
	UsePipeline(name string) error

	// Invalidate forces the next UsePipeline to apply its pipeline.
	Invalidate()

	// CurrentPipelineName returns the name of the applied pipeline, empty if none.
	CurrentPipelineName() string

	// ShaderVariableBinder returns the binder of the applied pipeline, nil if none.
	ShaderVariableBinder() binder.ShaderVariableBinder
}

var _ Binder = &pipelineBinder{}

// NewBinder creates an invalidated binder applying pipelines of m.
//
// Parameters:
//   - m: the manager pipelines are resolved from
//
// Returns:
//   - Binder: the new binder
func NewBinder(m Manager) Binder {
	return &pipelineBinder{manager: m, invalid: true}
}

func (b *pipelineBinder) SetCommandList(cl gpu.CommandList) {
	b.cl = cl
	b.Invalidate()
}

func (b *pipelineBinder) CommandList() gpu.CommandList { return b.cl }
func (b *pipelineBinder) CurrentPipelineName() string  { return b.current }

func (b *pipelineBinder) ShaderVariableBinder() binder.ShaderVariableBinder { return b.svb }

func (b *pipelineBinder) Invalidate() {
	b.invalid = true
}

func (b *pipelineBinder) UsePipeline(name string) error {
	if b.cl == nil {
		return fmt.Errorf("pipeline %q: no command list", name)
	}
	if b.invalid || name != b.current {
		if err := b.manager.ApplyPipeline(b.cl, name); err != nil {
			b.current = ""
			b.svb = nil
			return err
		}
		b.current = name
		b.invalid = false
	}
	svb, ok := b.manager.ShaderVariableBinder(name)
	if !ok {
		b.current = ""
		b.svb = nil
		return fmt.Errorf("%w: %q", ErrPipelineNotFound, name)
	}
	svb.SetCommandList(b.cl)
	b.svb = svb
	return nil
}
