package script

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr/vm"

	"github.com/ruleflow/phlow/execctx"
	"github.com/ruleflow/phlow/value"
)

var searchPatternCache sync.Map // string -> *regexp.Regexp

// searchOperator implements `left search right`: right is the regular
// expression, left is the string tested against it. An invalid pattern
// matches nothing rather than aborting the whole expression; it is not
// reported as an error anywhere, neither here nor by the transform.
func searchOperator(left, right string) bool {
	if cached, ok := searchPatternCache.Load(right); ok {
		return cached.(*regexp.Regexp).MatchString(left)
	}
	re, err := regexp.Compile(right)
	if err != nil {
		return false
	}
	searchPatternCache.Store(right, re)
	return re.MatchString(left)
}

// ScriptExpression is a compiled value expression: either a templated
// script ("{{ ... }}", evaluated against the request scope on every call)
// or an inline literal (any other Value, returned unchanged).
type ScriptExpression struct {
	literal   *value.Value
	program   *vm.Program
	source    string
}

// Compile inspects raw: a string of the exact form "{{ ... }}" (optional
// surrounding whitespace) is compiled as a script; anything else - a
// non-template string, a number, a bool, an object, an array - is an inline
// literal returned verbatim by Evaluate.
func Compile(engine *Engine, raw value.Value) (*ScriptExpression, error) {
	if raw.IsString() {
		if inner, ok := templateBody(raw.String()); ok {
			program, err := engine.compile(inner)
			if err != nil {
				return nil, err
			}
			return &ScriptExpression{program: program, source: inner}, nil
		}
	}
	lit := raw
	return &ScriptExpression{literal: &lit}, nil
}

// templateBody reports whether s is of the form "{{ ... }}" and, if so,
// returns its trimmed inner content.
func templateBody(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}
	inner := trimmed[2 : len(trimmed)-2]
	return strings.TrimSpace(inner), true
}

// Evaluate runs the expression against ctx's current scope bindings. An
// inline literal ignores ctx entirely.
func (s *ScriptExpression) Evaluate(ctx *execctx.Context) (value.Value, error) {
	if s.literal != nil {
		return *s.literal, nil
	}
	env := scopeEnv(ctx)
	out, err := vm.Run(s.program, env)
	if err != nil {
		return value.Value{}, fmt.Errorf("evaluate %q: %w", s.source, err)
	}
	return value.FromAny(out), nil
}

// IsLiteral reports whether this expression is an inline literal (never
// needs ctx to evaluate).
func (s *ScriptExpression) IsLiteral() bool { return s.literal != nil }

// scopeEnv builds the per-evaluation environment: main, payload, input,
// with, and steps, each flattened to plain Go values.
func scopeEnv(ctx *execctx.Context) map[string]any {
	env := map[string]any{
		"main":    nil,
		"payload": nil,
		"input":   nil,
		"with":    nil,
		"steps":   value.ToAny(ctx.StepsValue()),
	}
	if main, ok := ctx.Main(); ok {
		env["main"] = value.ToAny(main)
	}
	if payload, ok := ctx.GetPayload(); ok {
		env["payload"] = value.ToAny(payload)
	}
	if input, ok := ctx.Input(); ok {
		env["input"] = value.ToAny(input)
	}
	if with, ok := ctx.With(); ok {
		env["with"] = value.ToAny(with)
	}
	return env
}
