package execctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleflow/phlow/id"
	"github.com/ruleflow/phlow/value"
)

func TestPayloadProgression(t *testing.T) {
	ctx := New(value.String("req"), true, value.Value{}, false)

	_, ok := ctx.GetPayload()
	assert.False(t, ok)

	ctx.SetPayload(value.Int(1))
	got, ok := ctx.GetPayload()
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Int())

	ctx.SetPayload(value.Int(2))
	got, _ = ctx.GetPayload()
	assert.Equal(t, int64(2), got.Int())
}

func TestRecordStepOutputIsWriteOnce(t *testing.T) {
	ctx := New(value.Value{}, false, value.Value{}, false)
	a := id.New("a")

	ctx.RecordStepOutput(a, value.Int(1))
	ctx.RecordStepOutput(a, value.Int(2)) // second write must not clobber

	got, ok := ctx.GetStepOutput(a)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Int())
}

func TestRecordStepOutputAnonymousIsNoop(t *testing.T) {
	ctx := New(value.Value{}, false, value.Value{}, false)
	ctx.RecordStepOutput(id.None, value.Int(1))
	assert.Empty(t, ctx.StepsValue().Keys())
}

func TestInputLifecycle(t *testing.T) {
	ctx := New(value.Value{}, false, value.Value{}, false)
	_, ok := ctx.Input()
	assert.False(t, ok)

	ctx.SetInput(value.String("hi"))
	got, ok := ctx.Input()
	require.True(t, ok)
	assert.Equal(t, "hi", got.String())

	ctx.ClearInput()
	_, ok = ctx.Input()
	assert.False(t, ok)
}

func TestMainAndWithAreImmutableAfterConstruction(t *testing.T) {
	main := value.NewObject().Set("age", value.Int(20))
	with := value.NewObject().Set("timeout", value.Int(5))
	ctx := New(main, true, with, true)

	gotMain, ok := ctx.Main()
	require.True(t, ok)
	age, _ := gotMain.Get("age")
	assert.Equal(t, int64(20), age.Int())

	gotWith, ok := ctx.With()
	require.True(t, ok)
	timeout, _ := gotWith.Get("timeout")
	assert.Equal(t, int64(5), timeout.Int())
}
