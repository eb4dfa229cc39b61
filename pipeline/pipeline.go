// Package pipeline implements Pipeline: an ordered sequence of StepWorkers
// addressed by a numeric pipeline id.
package pipeline

import (
	"fmt"

	"github.com/ruleflow/phlow/collector"
	"github.com/ruleflow/phlow/execctx"
	"github.com/ruleflow/phlow/step"
	"github.com/ruleflow/phlow/value"
)

// Pipeline is an ordered, immutable sequence of steps.
type Pipeline struct {
	ID    int
	Steps []*step.Worker
}

// Outcome is the result of running a pipeline from a given start index.
type Outcome struct {
	Output   value.Value
	Terminal bool // true: workflow execution should stop, Output is final
	Switch   int  // valid when !Terminal: the pipeline to continue in
	Step     int  // valid when !Terminal: the step index to resume at
}

// Execute runs steps[startIndex:] against ctx, dispatching module calls
// through d and reporting each step to sink. sink may be nil, in which case
// no records are emitted.
func (p *Pipeline) Execute(ctx *execctx.Context, startIndex int, d step.Dispatcher, sink collector.Sink) (Outcome, error) {
	if sink == nil {
		sink = collector.NopSink{}
	}
	for i := startIndex; i < len(p.Steps); i++ {
		w := p.Steps[i]
		out, err := w.Execute(ctx, d)
		if err != nil {
			sink.Record(collector.StepRecord{Pipeline: p.ID, Index: i, ID: w.ID, HasError: true, Err: err.Error()})
			return Outcome{}, fmt.Errorf("pipeline %d step %d: %w", p.ID, i, err)
		}
		sink.Record(collector.StepRecord{Pipeline: p.ID, Index: i, ID: w.ID, Output: out.Output})

		if out.HasOutput {
			ctx.SetPayload(out.Output)
			ctx.RecordStepOutput(w.ID, out.Output)
		}

		switch out.Next {
		case step.Continue:
			continue
		case step.Stop:
			payload, _ := ctx.GetPayload()
			return Outcome{Output: payload, Terminal: true}, nil
		case step.EnterPipeline:
			payload, _ := ctx.GetPayload()
			return Outcome{Output: payload, Switch: out.Target.Pipeline, Step: 0}, nil
		case step.GoTo:
			return Outcome{Switch: out.Target.Pipeline, Step: out.Target.Step}, nil
		}
	}
	payload, _ := ctx.GetPayload()
	return Outcome{Output: payload, Terminal: true}, nil
}
