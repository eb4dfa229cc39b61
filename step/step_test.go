package step

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleflow/phlow/execctx"
	"github.com/ruleflow/phlow/id"
	"github.com/ruleflow/phlow/script"
	"github.com/ruleflow/phlow/value"
)

func compileExpr(t *testing.T, engine *script.Engine, src string) *script.ScriptExpression {
	t.Helper()
	e, err := script.Compile(engine, value.String(src))
	require.NoError(t, err)
	return e
}

func TestExecuteReturnStopsAndOverridesNext(t *testing.T) {
	engine := script.NewEngine()
	w := &Worker{ReturnExpr: compileExpr(t, engine, `{{ "ok" }}`)}

	out, err := w.Execute(execctx.New(value.Value{}, false, value.Value{}, false), nil)
	require.NoError(t, err)
	assert.Equal(t, Stop, out.Next)
	require.True(t, out.HasOutput)
	assert.Equal(t, "ok", out.Output.String())
}

func TestExecuteConditionTrueEntersThen(t *testing.T) {
	engine := script.NewEngine()
	cond, err := script.NewCondition(engine, "main.age >= 18")
	require.NoError(t, err)
	thenID := 3
	w := &Worker{Condition: cond, ThenBranch: &thenID}

	ctx := execctx.New(value.NewObject().Set("age", value.Int(20)), true, value.Value{}, false)
	out, err := w.Execute(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, EnterPipeline, out.Next)
	assert.Equal(t, 3, out.Target.Pipeline)
	assert.False(t, out.HasOutput)
}

func TestExecuteConditionFalseNoElseContinues(t *testing.T) {
	engine := script.NewEngine()
	cond, err := script.NewCondition(engine, "main.age >= 18")
	require.NoError(t, err)
	thenID := 3
	w := &Worker{Condition: cond, ThenBranch: &thenID}

	ctx := execctx.New(value.NewObject().Set("age", value.Int(10)), true, value.Value{}, false)
	out, err := w.Execute(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Continue, out.Next)
	assert.False(t, out.HasOutput)
}

func TestExecuteGotoTakesPrecedenceOverAbsentCondition(t *testing.T) {
	w := &Worker{Goto: &GotoTarget{Pipeline: 2, Step: 1}}
	out, err := w.Execute(execctx.New(value.Value{}, false, value.Value{}, false), nil)
	require.NoError(t, err)
	assert.Equal(t, GoTo, out.Next)
	assert.Equal(t, GotoTarget{Pipeline: 2, Step: 1}, out.Target)
}

func TestExecuteConditionTakesPrecedenceOverGoto(t *testing.T) {
	engine := script.NewEngine()
	cond, err := script.NewCondition(engine, "true")
	require.NoError(t, err)
	thenID := 5
	w := &Worker{Condition: cond, ThenBranch: &thenID, Goto: &GotoTarget{Pipeline: 9}}

	out, err := w.Execute(execctx.New(value.Value{}, false, value.Value{}, false), nil)
	require.NoError(t, err)
	assert.Equal(t, EnterPipeline, out.Next)
	assert.Equal(t, 5, out.Target.Pipeline)
}

type fakeDispatcher struct {
	gotModule string
	gotInput  value.Value
	reply     value.Value
	err       error
}

func (f *fakeDispatcher) Dispatch(module string, input value.Value) (value.Value, error) {
	f.gotModule = module
	f.gotInput = input
	return f.reply, f.err
}

func TestExecuteModuleCallDispatchesAndClearsInput(t *testing.T) {
	engine := script.NewEngine()
	w := &Worker{
		ID:         id.New("echo1"),
		ModuleCall: &ModuleCall{Module: "echo", InputExpr: compileExpr(t, engine, "{{ main }}")},
	}
	fake := &fakeDispatcher{reply: value.String("hi")}
	ctx := execctx.New(value.String("hi"), true, value.Value{}, false)

	out, err := w.Execute(ctx, fake)
	require.NoError(t, err)
	assert.Equal(t, "echo", fake.gotModule)
	assert.Equal(t, "hi", fake.gotInput.String())
	assert.Equal(t, "hi", out.Output.String())
	_, hasInput := ctx.Input()
	assert.False(t, hasInput, "input must be cleared after dispatch")
}

func TestExecuteModuleCallInheritsPayloadWhenNoInputExpr(t *testing.T) {
	w := &Worker{ModuleCall: &ModuleCall{Module: "echo"}}
	fake := &fakeDispatcher{reply: value.Null}
	ctx := execctx.New(value.Value{}, false, value.Value{}, false)
	ctx.SetPayload(value.Int(42))

	_, err := w.Execute(ctx, fake)
	require.NoError(t, err)
	assert.Equal(t, int64(42), fake.gotInput.Int())
}

func TestExecuteModuleCallErrorPropagates(t *testing.T) {
	w := &Worker{ModuleCall: &ModuleCall{Module: "echo"}}
	fake := &fakeDispatcher{err: errors.New("boom")}
	_, err := w.Execute(execctx.New(value.Value{}, false, value.Value{}, false), fake)
	require.Error(t, err)
}

func TestExecutePurePayloadStep(t *testing.T) {
	engine := script.NewEngine()
	w := &Worker{PayloadExpr: compileExpr(t, engine, "{{ main.x * 2 }}")}
	ctx := execctx.New(value.NewObject().Set("x", value.Int(5)), true, value.Value{}, false)

	out, err := w.Execute(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, Continue, out.Next)
	assert.Equal(t, int64(10), out.Output.Int())
}
