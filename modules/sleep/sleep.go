// Package sleep is a reference module that pauses for a configured duration
// before forwarding its input unchanged, useful for rate limiting or testing
// timeout-handling steps further down a pipeline.
package sleep

import (
	"context"
	"time"

	"github.com/ruleflow/phlow/protocol"
)

// Config controls how long the module sleeps per request.
type Config struct {
	Duration time.Duration
}

func configFromWith(setup protocol.ModuleSetup) Config {
	cfg := Config{Duration: 0}
	if !setup.HasWith {
		return cfg
	}
	if ms, ok := setup.With.Get("duration_ms"); ok && ms.IsInt() {
		cfg.Duration = time.Duration(ms.Int()) * time.Millisecond
	}
	return cfg
}

// Factory registers the module's inbound channel and, for each received
// package, sleeps for the configured duration before echoing the input
// back, respecting ctx cancellation during the sleep.
func Factory(ctx context.Context, setup protocol.ModuleSetup) {
	cfg := configFromWith(setup)
	inbound := make(chan protocol.ModulePackage)
	setup.SetupReply <- inbound

	for {
		select {
		case pkg, ok := <-inbound:
			if !ok {
				return
			}
			timer := time.NewTimer(cfg.Duration)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
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
