// Package step implements StepWorker: a single pipeline element that may
// branch on a condition, compute a payload, call a module, or return a
// final value.
package step

import (
	"fmt"

	"github.com/ruleflow/phlow/execctx"
	"github.com/ruleflow/phlow/id"
	"github.com/ruleflow/phlow/script"
	"github.com/ruleflow/phlow/value"
)

// Next names what a step asks the owning pipeline to do after it runs.
type Next int

const (
	Continue Next = iota
	Stop
	GoTo
	EnterPipeline
)

// GotoTarget names an unconditional jump to a specific step in a pipeline.
type GotoTarget struct {
	Pipeline int
	Step     int
}

// ModuleCall names the module a step invokes and the expression computing
// its input. A nil InputExpr means "inherit the current payload".
type ModuleCall struct {
	Module    string
	InputExpr *script.ScriptExpression
}

// Dispatcher sends a module invocation and blocks for its reply. Satisfied
// by registry.Registry; kept as an interface here so step has no import
// dependency on the registry or runtime packages.
type Dispatcher interface {
	Dispatch(module string, input value.Value) (value.Value, error)
}

// Worker is a StepWorker: immutable after construction, shared read-only
// across concurrent requests.
//
// Invariant: at most one of PayloadExpr, ModuleCall, ReturnExpr is set.
type Worker struct {
	ID           id.ID
	Condition    *script.Condition
	ThenBranch   *int
	ElseBranch   *int
	Goto         *GotoTarget
	PayloadExpr  *script.ScriptExpression
	ModuleCall   *ModuleCall
	ReturnExpr   *script.ScriptExpression
}

// Outcome is the result of executing one step.
type Outcome struct {
	Output    value.Value
	HasOutput bool
	Next      Next
	Target    GotoTarget // valid when Next is GoTo or EnterPipeline (Target.Pipeline only)
}

// Execute runs the five-step algorithm against ctx, dispatching module
// calls through d. d may be nil if this worker has no ModuleCall.
func (w *Worker) Execute(ctx *execctx.Context, d Dispatcher) (Outcome, error) {
	var outcome Outcome

	// Steps 1-3: condition / goto / fallthrough, in that exact precedence.
	switch {
	case w.Condition != nil:
		ok, err := w.Condition.Evaluate(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("step %q: condition: %w", w.ID.String(), err)
		}
		switch {
		case ok && w.ThenBranch != nil:
			outcome.Next = EnterPipeline
			outcome.Target = GotoTarget{Pipeline: *w.ThenBranch}
		case !ok && w.ElseBranch != nil:
			outcome.Next = EnterPipeline
			outcome.Target = GotoTarget{Pipeline: *w.ElseBranch}
		default:
			outcome.Next = Continue
		}
	case w.Goto != nil:
		outcome.Next = GoTo
		outcome.Target = *w.Goto
	default:
		outcome.Next = Continue
	}

	// Step 4: compute output, independent of the branch decision above.
	switch {
	case w.ReturnExpr != nil:
		out, err := w.ReturnExpr.Evaluate(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("step %q: return: %w", w.ID.String(), err)
		}
		outcome.Output = out
		outcome.HasOutput = true
		outcome.Next = Stop

	case w.ModuleCall != nil:
		input, err := w.resolveModuleInput(ctx)
		if err != nil {
			return Outcome{}, err
		}
		ctx.SetInput(input)
		reply, err := d.Dispatch(w.ModuleCall.Module, input)
		ctx.ClearInput()
		if err != nil {
			return Outcome{}, fmt.Errorf("step %q: module %q: %w", w.ID.String(), w.ModuleCall.Module, err)
		}
		outcome.Output = reply
		outcome.HasOutput = true

	case w.PayloadExpr != nil:
		out, err := w.PayloadExpr.Evaluate(ctx)
		if err != nil {
			return Outcome{}, fmt.Errorf("step %q: payload: %w", w.ID.String(), err)
		}
		outcome.Output = out
		outcome.HasOutput = true
	}

	return outcome, nil
}

// resolveModuleInput evaluates ModuleCall.InputExpr, or inherits the
// current payload when no input expression was given.
func (w *Worker) resolveModuleInput(ctx *execctx.Context) (value.Value, error) {
	if w.ModuleCall.InputExpr != nil {
		v, err := w.ModuleCall.InputExpr.Evaluate(ctx)
		if err != nil {
			return value.Value{}, fmt.Errorf("step %q: module input: %w", w.ID.String(), err)
		}
		return v, nil
	}
	if payload, ok := ctx.GetPayload(); ok {
		return payload, nil
	}
	return value.Null, nil
}
