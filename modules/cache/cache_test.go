package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

func mustGet(t *testing.T, v value.Value, key string) value.Value {
	t.Helper()
	got, ok := v.Get(key)
	require.True(t, ok, "missing key %q", key)
	return got
}

func TestFactorySetGetDelete(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := Config{Address: mr.Addr()}
	client := NewClient(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupReply := make(chan chan<- protocol.ModulePackage, 1)
	go Factory(client, cfg)(ctx, protocol.ModuleSetup{SetupReply: setupReply})
	inbound := <-setupReply

	reply := make(chan value.Value, 1)
	inbound <- protocol.ModulePackage{
		Input: value.NewObject().Set("op", value.String("set")).Set("key", value.String("k")).Set("value", value.String("v")),
		Reply: reply,
	}
	require.True(t, mustGet(t, <-reply, "ok").Bool())

	reply = make(chan value.Value, 1)
	inbound <- protocol.ModulePackage{
		Input: value.NewObject().Set("op", value.String("get")).Set("key", value.String("k")),
		Reply: reply,
	}
	got := <-reply
	assert.True(t, mustGet(t, got, "found").Bool())
	assert.Equal(t, "v", mustGet(t, got, "value").String())

	reply = make(chan value.Value, 1)
	inbound <- protocol.ModulePackage{
		Input: value.NewObject().Set("op", value.String("delete")).Set("key", value.String("k")),
		Reply: reply,
	}
	require.True(t, mustGet(t, <-reply, "ok").Bool())

	reply = make(chan value.Value, 1)
	inbound <- protocol.ModulePackage{
		Input: value.NewObject().Set("op", value.String("get")).Set("key", value.String("k")),
		Reply: reply,
	}
	got = <-reply
	assert.False(t, mustGet(t, got, "found").Bool())
}

func TestHandleMissingKey(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := Config{Address: mr.Addr()}
	client := NewClient(cfg)
	defer client.Close()

	out := handle(context.Background(), client, cfg, value.NewObject().Set("op", value.String("get")))
	isErr, ok := out.Get("is_error")
	require.True(t, ok)
	assert.True(t, isErr.Bool())
}
