// Package echo is the simplest possible reference module: it replies with
// whatever input it receives, unchanged. Useful as a wiring smoke test and
// for pipelines that need a no-op `use:` target.
package echo

import (
	"context"

	"github.com/ruleflow/phlow/protocol"
)

// Factory registers an inbound channel and echoes every ModulePackage's
// Input back on its Reply channel until the channel is closed.
func Factory(ctx context.Context, setup protocol.ModuleSetup) {
	inbound := make(chan protocol.ModulePackage)
	setup.SetupReply <- inbound

	for {
		select {
		case pkg, ok := <-inbound:
			if !ok {
				return
			}
			select {
			case pkg.Reply <- pkg.Input:
			default:
				go func(p protocol.ModulePackage) { p.Reply <- p.Input }(pkg)
			}
		case <-ctx.Done():
			return
		}
	}
}
