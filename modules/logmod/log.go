// Package logmod is a reference module that logs its input through
// go.uber.org/zap and passes it through unchanged, letting a pipeline splice
// a log line into the middle of a step chain without a branch.
package logmod

import (
	"context"

	"go.uber.org/zap"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// Config controls how the module logs.
type Config struct {
	Level   string // "debug", "info", "warn", "error"; defaults to "info"
	Message string // static message logged alongside the input; defaults to "step"
}

func configFromWith(setup protocol.ModuleSetup) Config {
	cfg := Config{Level: "info", Message: "step"}
	if !setup.HasWith {
		return cfg
	}
	if lvl, ok := setup.With.Get("level"); ok && lvl.IsString() {
		cfg.Level = lvl.String()
	}
	if msg, ok := setup.With.Get("message"); ok && msg.IsString() {
		cfg.Message = msg.String()
	}
	return cfg
}

// Factory builds a logmod instance bound to logger, registers its inbound
// channel, and logs+forwards every received input until the channel closes.
func Factory(logger *zap.Logger) func(ctx context.Context, setup protocol.ModuleSetup) {
	return func(ctx context.Context, setup protocol.ModuleSetup) {
		cfg := configFromWith(setup)
		inbound := make(chan protocol.ModulePackage)
		setup.SetupReply <- inbound

		log := func(v value.Value) {
			field := zap.Any("input", value.ToAny(v))
			switch cfg.Level {
			case "debug":
				logger.Debug(cfg.Message, field)
			case "warn":
				logger.Warn(cfg.Message, field)
			case "error":
				logger.Error(cfg.Message, field)
			default:
				logger.Info(cfg.Message, field)
			}
		}

		for {
			select {
			case pkg, ok := <-inbound:
				if !ok {
					return
				}
				log(pkg.Input)
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
}
