package script

import (
	"fmt"
	"strings"

	"github.com/ruleflow/phlow/execctx"
	"github.com/ruleflow/phlow/value"
)

// TypeMismatch is returned when a Condition's assert expression evaluates
// to a non-boolean Value.
type TypeMismatch struct {
	Source string
	Got    value.Kind
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("condition %q must evaluate to bool, got %s", e.Source, e.Got)
}

// Condition wraps a boolean-valued ScriptExpression. NewCondition applies
// the "bare expression" sugar: an assert field that is not already wrapped
// in "{{ ... }}" is wrapped there so `5 > 3` and `{{ 5 > 3 }}` behave
// identically.
type Condition struct {
	expr   *ScriptExpression
	source string
}

// NewCondition compiles assert as a boolean expression. A bare expression
// (no surrounding "{{ }}") is treated as if it had been wrapped.
func NewCondition(engine *Engine, assert string) (*Condition, error) {
	trimmed := strings.TrimSpace(assert)
	if _, ok := templateBody(trimmed); !ok {
		trimmed = "{{ " + trimmed + " }}"
	}
	expr, err := Compile(engine, value.String(trimmed))
	if err != nil {
		return nil, err
	}
	return &Condition{expr: expr, source: assert}, nil
}

// Evaluate runs the condition against ctx and returns its boolean result.
func (c *Condition) Evaluate(ctx *execctx.Context) (bool, error) {
	out, err := c.expr.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	if !out.IsBool() {
		return false, &TypeMismatch{Source: c.source, Got: out.Kind()}
	}
	return out.Bool(), nil
}
