// Package registry implements ModuleRegistry: the name -> inbound-channel
// directory a running Workflow uses to dispatch `use` steps to modules.
package registry

import (
	"fmt"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// ModuleNotLoaded is returned when a `use` step targets a name absent from
// the registry.
type ModuleNotLoaded struct {
	Name string
}

func (e *ModuleNotLoaded) Error() string { return fmt.Sprintf("module not loaded: %q", e.Name) }

// ModuleSilent is returned when a `use` step targets a module that
// registered without an inbound channel (a pure sink, unaddressable).
type ModuleSilent struct {
	Name string
}

func (e *ModuleSilent) Error() string { return fmt.Sprintf("module is silent: %q", e.Name) }

// Registry maps module names to their inbound request channel. Read-only
// after startup: every module registers once before the Runtime starts
// accepting traffic, and the map is never mutated afterward.
type Registry struct {
	inbound map[string]chan<- protocol.ModulePackage
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{inbound: make(map[string]chan<- protocol.ModulePackage)}
}

// Register records name's inbound channel. A nil ch marks name as silent:
// known by name (so Dispatch does not report ModuleNotLoaded) but
// rejecting every dispatch with ModuleSilent.
func (r *Registry) Register(name string, ch chan<- protocol.ModulePackage) {
	r.inbound[name] = ch
}

// Dispatch sends a ModulePackage to name's inbound channel and blocks for
// its reply. Implements step.Dispatcher. A dropped reply (the module
// closing the reply channel without sending) surfaces as value.Null,
// matching the "reply drop -> Null" tolerance of the protocol. A module
// that neither sends nor closes leaves Dispatch blocked.
func (r *Registry) Dispatch(name string, input value.Value) (value.Value, error) {
	ch, ok := r.inbound[name]
	if !ok {
		return value.Value{}, &ModuleNotLoaded{Name: name}
	}
	if ch == nil {
		return value.Value{}, &ModuleSilent{Name: name}
	}

	reply := make(chan value.Value, 1)
	ch <- protocol.ModulePackage{Input: input, Reply: reply}

	out, ok := <-reply
	if !ok {
		return value.Null, nil
	}
	return out, nil
}
