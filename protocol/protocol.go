// Package protocol defines the module invocation contract shared by the
// runtime orchestrator and the module registry: Package (module -> runtime),
// ModulePackage (engine -> module), and the ModuleSetup startup handshake.
// Kept separate from both runtime and registry so neither has to import the
// other just to speak the wire types.
package protocol

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/ruleflow/phlow/value"
)

// Package is a request sent from the designated main module into the
// runtime to be executed against the workflow. Only the main module may
// send one.
type Package struct {
	RequestData value.Value
	HasRequest  bool
	Origin      int
	Reply       chan<- value.Value
	Span        trace.SpanContext
}

// ModulePackage is the inverse: a request from the engine to a module
// during a `use` step.
type ModulePackage struct {
	Input value.Value
	Reply chan<- value.Value
	Span  trace.SpanContext
}

// ModuleSetup is delivered once to each module task at startup.
type ModuleSetup struct {
	ID int

	// SetupReply registers this module's inbound channel with the runtime.
	// A module that never sends on SetupReply (or sends nil) registers as
	// silent: addressable by name, but every dispatch to it fails with
	// ModuleSilent.
	SetupReply chan<- chan<- ModulePackage

	// MainSender is non-nil only for the module named in the document's
	// `main:` block; it is that module's route to submit Packages.
	MainSender chan<- Package

	With    value.Value
	HasWith bool
	Span    trace.SpanContext
}
