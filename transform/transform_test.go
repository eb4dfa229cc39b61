package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleflow/phlow/execctx"
	"github.com/ruleflow/phlow/script"
	"github.com/ruleflow/phlow/value"
)

func stepDoc(fields map[string]value.Value) value.Value {
	obj := value.NewObject()
	for k, v := range fields {
		obj = obj.Set(k, v)
	}
	return obj
}

func doc(fields map[string]value.Value) value.Value {
	return stepDoc(fields)
}

// S1 - simple return.
func TestBuildSimpleReturn(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"steps": value.Array(stepDoc(map[string]value.Value{
			"return": value.String("ok"),
		})),
	})

	d, err := Build(engine, document)
	require.NoError(t, err)
	assert.Equal(t, d.Workflow.Entry, 0, "single flat pipeline gets id 0 and is the entry")

	out, err := d.Workflow.Execute(execctx.New(value.NewObject(), true, value.Value{}, false), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.String())
}

// S2 - condition then/else with nested pipelines assigned post-order.
func TestBuildConditionThenElse(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"steps": value.Array(stepDoc(map[string]value.Value{
			"assert": value.String("{{ main.age >= 18 }}"),
			"then": stepDoc(map[string]value.Value{
				"steps": value.Array(stepDoc(map[string]value.Value{"return": value.String("adult")})),
			}),
			"else": stepDoc(map[string]value.Value{
				"steps": value.Array(stepDoc(map[string]value.Value{"return": value.String("minor")})),
			}),
		})),
	})

	d, err := Build(engine, document)
	require.NoError(t, err)
	assert.Len(t, d.Workflow.Pipelines, 3, "then pipeline, else pipeline, and the outer root")
	assert.Equal(t, 2, d.Workflow.Entry, "outermost steps array assigned last")

	adult, err := d.Workflow.Execute(execctx.New(value.NewObject().Set("age", value.Int(20)), true, value.Value{}, false), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "adult", adult.String())

	minor, err := d.Workflow.Execute(execctx.New(value.NewObject().Set("age", value.Int(10)), true, value.Value{}, false), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "minor", minor.String())
}

// S3 - named step reuse.
func TestBuildNamedStepReuse(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"steps": value.Array(
			stepDoc(map[string]value.Value{"id": value.String("a"), "payload": value.String("{{ main.x * 2 }}")}),
			stepDoc(map[string]value.Value{"return": value.String("{{ steps.a + 1 }}")}),
		),
	})

	d, err := Build(engine, document)
	require.NoError(t, err)
	out, err := d.Workflow.Execute(execctx.New(value.NewObject().Set("x", value.Int(5)), true, value.Value{}, false), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(11), out.Int())
}

// S5 - string operators survive the document round trip.
func TestBuildStringOperator(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"steps": value.Array(stepDoc(map[string]value.Value{
			"return": value.String(`{{ main starts_with "he" }}`),
		})),
	})

	d, err := Build(engine, document)
	require.NoError(t, err)
	out, err := d.Workflow.Execute(execctx.New(value.String("hello"), true, value.Value{}, false), nil, nil)
	require.NoError(t, err)
	assert.True(t, out.Bool())
}

// S6 - goto target that doesn't exist fails to build.
func TestBuildMissingGotoTargetIsConfigError(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"steps": value.Array(stepDoc(map[string]value.Value{
			"goto": stepDoc(map[string]value.Value{"pipeline": value.Int(99)}),
		})),
	})

	_, err := Build(engine, document)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestBuildUseUndeclaredModuleIsModuleNotFound(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"steps": value.Array(stepDoc(map[string]value.Value{"use": value.String("echo")})),
	})

	_, err := Build(engine, document)
	require.Error(t, err)
	var notFound *ModuleNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestBuildThenWithoutAssertIsConditionInvalid(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"steps": value.Array(stepDoc(map[string]value.Value{
			"then": stepDoc(map[string]value.Value{
				"steps": value.Array(stepDoc(map[string]value.Value{"return": value.String("x")})),
			}),
		})),
	})

	_, err := Build(engine, document)
	require.Error(t, err)
	var invalid *ConditionInvalid
	require.ErrorAs(t, err, &invalid)
}

func TestBuildGotoMayNotTargetBranchPipeline(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"steps": value.Array(
			stepDoc(map[string]value.Value{
				"assert": value.String("true"),
				"then": stepDoc(map[string]value.Value{
					"steps": value.Array(stepDoc(map[string]value.Value{"return": value.String("x")})),
				}),
			}),
			stepDoc(map[string]value.Value{"goto": stepDoc(map[string]value.Value{"pipeline": value.Int(0)})}),
		),
	})

	_, err := Build(engine, document)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestBuildLabelAliasesID(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"steps": value.Array(
			stepDoc(map[string]value.Value{"label": value.String("a"), "payload": value.String("{{ 1 }}")}),
			stepDoc(map[string]value.Value{"return": value.String("{{ steps.a }}")}),
		),
	})

	d, err := Build(engine, document)
	require.NoError(t, err)
	out, err := d.Workflow.Execute(execctx.New(value.Value{}, false, value.Value{}, false), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Int())
}

func TestBuildModuleDeclarationsAndMain(t *testing.T) {
	engine := script.NewEngine()
	document := doc(map[string]value.Value{
		"modules": value.Array(stepDoc(map[string]value.Value{
			"module": value.String("echo"), "name": value.String("echo"),
		})),
		"main": stepDoc(map[string]value.Value{"module": value.String("http_server")}),
		"steps": value.Array(stepDoc(map[string]value.Value{
			"use": value.String("echo"), "input": value.String("{{ main }}"),
		})),
	})

	d, err := Build(engine, document)
	require.NoError(t, err)
	require.Len(t, d.Modules, 1)
	assert.Equal(t, "echo", d.Modules[0].Name)
	require.NotNil(t, d.Main)
	assert.Equal(t, "http_server", d.Main.ModuleType)
}
