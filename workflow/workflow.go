// Package workflow implements Workflow: the full set of pipelines plus the
// designated entry pipeline, and the top-level execution loop that walks
// pipeline switches until a terminal outcome is reached.
package workflow

import (
	"fmt"

	"github.com/ruleflow/phlow/collector"
	"github.com/ruleflow/phlow/execctx"
	"github.com/ruleflow/phlow/pipeline"
	"github.com/ruleflow/phlow/step"
	"github.com/ruleflow/phlow/value"
)

// PipelineNotFound is returned when a branch/goto switch targets a pipeline
// id absent from the workflow. Transform validation should make this
// unreachable at runtime; it is kept as a defensive check.
type PipelineNotFound struct {
	ID int
}

func (e *PipelineNotFound) Error() string {
	return fmt.Sprintf("pipeline %d not found", e.ID)
}

// Workflow is the full pipeline graph, read-only once built.
type Workflow struct {
	Pipelines map[int]*pipeline.Pipeline
	Entry     int
}

// Execute walks pipelines starting at Entry, step 0, following switches
// until a pipeline returns a terminal outcome. No iteration cap is
// enforced; cyclic pipeline graphs are permitted and terminate only via
// Stop or end-of-pipeline fallthrough. sink may be nil.
func (w *Workflow) Execute(ctx *execctx.Context, d step.Dispatcher, sink collector.Sink) (value.Value, error) {
	curPipeline := w.Entry
	curStep := 0

	for {
		p, ok := w.Pipelines[curPipeline]
		if !ok {
			return value.Value{}, &PipelineNotFound{ID: curPipeline}
		}

		out, err := p.Execute(ctx, curStep, d, sink)
		if err != nil {
			return value.Value{}, err
		}

		if out.Terminal {
			return out.Output, nil
		}
		curPipeline = out.Switch
		curStep = out.Step
	}
}
