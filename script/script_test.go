package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleflow/phlow/execctx"
	"github.com/ruleflow/phlow/value"
)

func TestCompileInlineLiteralIgnoresContext(t *testing.T) {
	engine := NewEngine()
	expr, err := Compile(engine, value.String("plain text"))
	require.NoError(t, err)
	assert.True(t, expr.IsLiteral())

	out, err := expr.Evaluate(nil)
	require.NoError(t, err)
	assert.Equal(t, "plain text", out.String())
}

func TestCompileTemplateEvaluatesAgainstMain(t *testing.T) {
	engine := NewEngine()
	expr, err := Compile(engine, value.String("{{ main.age + 1 }}"))
	require.NoError(t, err)
	assert.False(t, expr.IsLiteral())

	ctx := execctx.New(value.NewObject().Set("age", value.Int(20)), true, value.Value{}, false)
	out, err := expr.Evaluate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(21), out.Int())
}

func TestStartsWithAndEndsWithOperators(t *testing.T) {
	engine := NewEngine()
	ctx := execctx.New(value.String("hello"), true, value.Value{}, false)

	prefix, err := Compile(engine, value.String(`{{ main starts_with "he" }}`))
	require.NoError(t, err)
	out, err := prefix.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, out.Bool())

	suffix, err := Compile(engine, value.String(`{{ main ends_with "lo" }}`))
	require.NoError(t, err)
	out, err = suffix.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, out.Bool())
}

func TestSearchOperatorRightOperandIsPattern(t *testing.T) {
	engine := NewEngine()
	ctx := execctx.New(value.String("order-123"), true, value.Value{}, false)

	expr, err := Compile(engine, value.String(`{{ main search "\\d+" }}`))
	require.NoError(t, err)
	out, err := expr.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, out.Bool())
}

func TestRegisteredExtensionFunction(t *testing.T) {
	engine := NewEngine()
	engine.Register("double", func(v value.Value) value.Value {
		return value.Int(v.Int() * 2)
	})

	expr, err := Compile(engine, value.String("{{ double(21) }}"))
	require.NoError(t, err)
	out, err := expr.Evaluate(execctx.New(value.Value{}, false, value.Value{}, false))
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.Int())
}

func TestConditionBareExpressionSugar(t *testing.T) {
	engine := NewEngine()
	cond, err := NewCondition(engine, "main > 3")
	require.NoError(t, err)

	ctx := execctx.New(value.Int(5), true, value.Value{}, false)
	ok, err := cond.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConditionTypeMismatch(t *testing.T) {
	engine := NewEngine()
	cond, err := NewCondition(engine, `{{ "not a bool" }}`)
	require.NoError(t, err)

	_, err = cond.Evaluate(execctx.New(value.Value{}, false, value.Value{}, false))
	require.Error(t, err)
	var mismatch *TypeMismatch
	assert.ErrorAs(t, err, &mismatch)
}
