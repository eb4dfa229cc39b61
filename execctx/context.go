// Package execctx implements the per-request mutable execution state
// visible to script expressions: main, payload, input, with, and the
// outputs of past named steps.
package execctx

import (
	"github.com/ruleflow/phlow/id"
	"github.com/ruleflow/phlow/value"
)

// Context is a single in-flight request's state. It has a single owner
// (the goroutine executing the request) and requires no locking.
//
// Invariant: main and with are immutable after construction. payload
// monotonically progresses through steps. steps[id] is written at most once
// per id per request.
type Context struct {
	main    value.Value
	hasMain bool
	with    value.Value
	hasWith bool
	payload value.Value
	hasPayload bool
	input      value.Value
	hasInput   bool
	steps      map[string]value.Value
}

// New creates a Context seeded with main (the original request payload) and
// with (the engine's own configuration block).
func New(main value.Value, hasMain bool, with value.Value, hasWith bool) *Context {
	return &Context{
		main:    main,
		hasMain: hasMain,
		with:    with,
		hasWith: hasWith,
		steps:   make(map[string]value.Value),
	}
}

// Main returns the original request payload, read-only.
func (c *Context) Main() (value.Value, bool) { return c.main, c.hasMain }

// With returns the engine's configuration block, read-only.
func (c *Context) With() (value.Value, bool) { return c.with, c.hasWith }

// SetPayload overwrites the last step's computed output.
func (c *Context) SetPayload(v value.Value) {
	c.payload = v
	c.hasPayload = true
}

// GetPayload returns the most recently set payload, if any.
func (c *Context) GetPayload() (value.Value, bool) { return c.payload, c.hasPayload }

// SetInput sets the value passed as input to a module invocation.
func (c *Context) SetInput(v value.Value) {
	c.input = v
	c.hasInput = true
}

// ClearInput clears the module-invocation input after dispatch completes.
func (c *Context) ClearInput() {
	c.input = value.Value{}
	c.hasInput = false
}

// Input returns the value currently staged for a module invocation.
func (c *Context) Input() (value.Value, bool) { return c.input, c.hasInput }

// RecordStepOutput stores id -> v. A no-op if id is anonymous.
func (c *Context) RecordStepOutput(stepID id.ID, v value.Value) {
	if !stepID.IsSome() {
		return
	}
	if _, exists := c.steps[stepID.String()]; exists {
		// Keys unique: at most one write per id per request.
		return
	}
	c.steps[stepID.String()] = v
}

// GetStepOutput retrieves a previously recorded step output by id.
func (c *Context) GetStepOutput(stepID id.ID) (value.Value, bool) {
	v, ok := c.steps[stepID.String()]
	return v, ok
}

// StepsValue renders all recorded step outputs as an object Value, suitable
// for binding as the `steps` scope variable in a script evaluation.
func (c *Context) StepsValue() value.Value {
	out := value.NewObject()
	for k, v := range c.steps {
		out = out.Set(k, v)
	}
	return out
}
