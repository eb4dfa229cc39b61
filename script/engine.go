// Package script wraps github.com/expr-lang/expr into the ScriptExpression
// and Condition contract described by the engine: a shared, process-wide
// compiled script engine with custom string operators and scope bindings
// for main, payload, input, with, and steps.
package script

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ruleflow/phlow/value"
)

// ExtensionFunc is a registered extension function: one Value in, one Value
// out, callable by name from any compiled expression.
type ExtensionFunc func(value.Value) value.Value

// Engine is the shared, immutable-after-setup script engine. A single Engine
// is built once per Runtime and shared (read-only) across all in-flight
// requests; each evaluation allocates its own scope on the calling
// goroutine's stack (the env map built in expression.go).
type Engine struct {
	extensions map[string]ExtensionFunc
}

// NewEngine builds an Engine with the three custom string operators
// (starts_with, ends_with, search) wired in. Extension functions are added
// afterward with Register before any expression compiles against it.
func NewEngine() *Engine {
	return &Engine{extensions: make(map[string]ExtensionFunc)}
}

// Register adds a named extension function, callable from scripts as
// name(value). Must be called before Compile for expressions that use it.
func (e *Engine) Register(name string, fn ExtensionFunc) {
	e.extensions[name] = fn
}

// options returns the expr compile options for this engine: the custom
// operator patches plus the environment shape (a plain map, since Value
// trees are flattened to `any` before evaluation).
func (e *Engine) options(env map[string]any) []expr.Option {
	return []expr.Option{
		expr.Env(env),
		expr.Operator("starts_with", "StartsWith"),
		expr.Operator("ends_with", "EndsWith"),
		expr.Operator("search", "Search"),
		expr.AllowUndefinedVariables(),
	}
}

// compile parses source against this engine's operator set, returning the
// vm.Program to be run per-evaluation with a fresh env.
func (e *Engine) compile(source string) (*vm.Program, error) {
	env := baseEnv(e)
	program, err := expr.Compile(source, e.options(env)...)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}
	return program, nil
}

// baseEnv builds the env shape used at compile time: scope variable names
// plus every registered extension function and operator helper, all typed
// as `any` so expr's static checker accepts any run-time value.
func baseEnv(e *Engine) map[string]any {
	env := map[string]any{
		"main":    any(nil),
		"payload": any(nil),
		"input":   any(nil),
		"with":    any(nil),
		"steps":   any(nil),
		"StartsWith": func(a, b string) bool { return strings.HasPrefix(a, b) },
		"EndsWith":   func(a, b string) bool { return strings.HasSuffix(a, b) },
		"Search":     searchOperator,
	}
	for name, fn := range e.extensions {
		fn := fn
		env[name] = func(in any) any {
			return value.ToAny(fn(value.FromAny(in)))
		}
	}
	return env
}
