// Package rpcmod is a reference module invoking a generic gRPC method with a
// structpb.Struct payload, grounded in the shape of the original
// modules/rpc/src/client.rs request/response cycle (a single typed call per
// request) and the teacher's plugin/external gRPC wiring. A request is
// {"method": "/pkg.Service/Method", "data": {...}}.
package rpcmod

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// Config holds the module's dial target and call timeout.
type Config struct {
	Target  string
	Timeout time.Duration
}

func configFromWith(setup protocol.ModuleSetup) Config {
	cfg := Config{Timeout: 5 * time.Second}
	if setup.HasWith {
		if v, ok := setup.With.Get("target"); ok && v.IsString() {
			cfg.Target = v.String()
		}
		if v, ok := setup.With.Get("timeout_ms"); ok && v.IsInt() {
			cfg.Timeout = time.Duration(v.Int()) * time.Millisecond
		}
	}
	return cfg
}

// Invoker is the subset of *grpc.ClientConn the module needs, kept as an
// interface so tests can substitute a fake.
type Invoker interface {
	Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error
}

// Dial opens a plaintext gRPC connection to cfg.Target.
func Dial(cfg Config) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(cfg.Target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("rpcmod: dial %s: %w", cfg.Target, err)
	}
	return conn, nil
}

// Factory registers the module's inbound channel and services gRPC calls
// against conn until the channel closes.
func Factory(conn Invoker, cfg Config) func(ctx context.Context, setup protocol.ModuleSetup) {
	return func(ctx context.Context, setup protocol.ModuleSetup) {
		inbound := make(chan protocol.ModulePackage)
		setup.SetupReply <- inbound

		for {
			select {
			case pkg, ok := <-inbound:
				if !ok {
					return
				}
				out := handle(ctx, conn, cfg, pkg.Input)
				select {
				case pkg.Reply <- out:
				default:
					go func(p protocol.ModulePackage, v value.Value) { p.Reply <- v }(pkg, out)
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

func handle(ctx context.Context, conn Invoker, cfg Config, input value.Value) value.Value {
	methodVal, ok := input.Get("method")
	if !ok || !methodVal.IsString() {
		return failure("missing field 'method'")
	}
	data, _ := input.Get("data")

	req, err := structpb.NewStruct(asStringMap(value.ToAny(data)))
	if err != nil {
		return failure(fmt.Sprintf("encode request: %v", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := conn.Invoke(callCtx, methodVal.String(), req, resp); err != nil {
		return failure(err.Error())
	}

	return value.FromAny(resp.AsMap())
}

func asStringMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func failure(msg string) value.Value {
	return value.NewObject().Set("is_error", value.Bool(true)).Set("message", value.String(msg))
}
