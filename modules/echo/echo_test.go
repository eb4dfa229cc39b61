package echo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

func TestFactoryEchoesInput(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupReply := make(chan chan<- protocol.ModulePackage, 1)
	go Factory(ctx, protocol.ModuleSetup{SetupReply: setupReply})

	var inbound chan<- protocol.ModulePackage
	select {
	case inbound = <-setupReply:
	case <-time.After(time.Second):
		t.Fatal("factory never registered")
	}

	reply := make(chan value.Value, 1)
	inbound <- protocol.ModulePackage{Input: value.String("hello"), Reply: reply}

	select {
	case out := <-reply:
		assert.Equal(t, "hello", out.String())
	case <-time.After(time.Second):
		t.Fatal("no reply received")
	}
}

func TestFactoryExitsWhenInboundCloses(t *testing.T) {
	ctx := context.Background()
	setupReply := make(chan chan<- protocol.ModulePackage, 1)
	done := make(chan struct{})

	go func() {
		Factory(ctx, protocol.ModuleSetup{SetupReply: setupReply})
		close(done)
	}()

	inbound := <-setupReply
	close(inbound)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("factory did not exit after inbound closed")
	}
}
