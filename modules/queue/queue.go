// Package queue is a reference module exposing publish/subscribe over NATS,
// grounded in the teacher's module/nats_broker.go. The pack carries no Go
// AMQP/RabbitMQ client; NATS is the pack's closest message-broker dependency
// and stands in for that role here. A request is
// {"op": "publish", "subject": ..., "data": ...} or
// {"op": "request", "subject": ..., "data": ..., "timeout_ms": ...}.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// Config holds the module's NATS connection settings.
type Config struct {
	URL string
}

func configFromWith(setup protocol.ModuleSetup) Config {
	cfg := Config{URL: nats.DefaultURL}
	if setup.HasWith {
		if v, ok := setup.With.Get("url"); ok && v.IsString() {
			cfg.URL = v.String()
		}
	}
	return cfg
}

// Conn is the subset of *nats.Conn the module needs.
type Conn interface {
	Publish(subj string, data []byte) error
	Request(subj string, data []byte, timeout time.Duration) (*nats.Msg, error)
	Close()
}

// NewConn dials a NATS server per cfg.
func NewConn(cfg Config) (Conn, error) {
	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("queue: connect: %w", err)
	}
	return conn, nil
}

// Factory registers the module's inbound channel and services
// publish/request operations against conn until the channel closes.
func Factory(conn Conn) func(ctx context.Context, setup protocol.ModuleSetup) {
	return func(ctx context.Context, setup protocol.ModuleSetup) {
		defer conn.Close()
		inbound := make(chan protocol.ModulePackage)
		setup.SetupReply <- inbound

		for {
			select {
			case pkg, ok := <-inbound:
				if !ok {
					return
				}
				out := handle(conn, pkg.Input)
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

func handle(conn Conn, input value.Value) value.Value {
	op, ok := input.Get("op")
	if !ok || !op.IsString() {
		return failure("missing field 'op'")
	}
	subjectVal, ok := input.Get("subject")
	if !ok || !subjectVal.IsString() {
		return failure("missing field 'subject'")
	}
	data, _ := input.Get("data")
	payload := []byte(data.String())

	switch op.String() {
	case "publish":
		if err := conn.Publish(subjectVal.String(), payload); err != nil {
			return failure(err.Error())
		}
		return value.NewObject().Set("ok", value.Bool(true))
	case "request":
		timeout := 2 * time.Second
		if v, ok := input.Get("timeout_ms"); ok && v.IsInt() {
			timeout = time.Duration(v.Int()) * time.Millisecond
		}
		msg, err := conn.Request(subjectVal.String(), payload, timeout)
		if err != nil {
			return failure(err.Error())
		}
		return value.NewObject().Set("reply", value.String(string(msg.Data)))
	default:
		return failure(fmt.Sprintf("invalid op %q", op.String()))
	}
}

func failure(msg string) value.Value {
	return value.NewObject().Set("is_error", value.Bool(true)).Set("message", value.String(msg))
}
