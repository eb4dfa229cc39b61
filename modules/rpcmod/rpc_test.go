package rpcmod

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ruleflow/phlow/value"
)

type fakeInvoker struct {
	gotMethod string
	reply     *structpb.Struct
	err       error
}

func (f *fakeInvoker) Invoke(ctx context.Context, method string, args, reply any, opts ...grpc.CallOption) error {
	f.gotMethod = method
	if f.err != nil {
		return f.err
	}
	out := reply.(*structpb.Struct)
	out.Fields = f.reply.Fields
	return nil
}

func TestHandleInvokesMethodAndDecodesReply(t *testing.T) {
	respStruct, err := structpb.NewStruct(map[string]any{"status": "ok"})
	require.NoError(t, err)
	inv := &fakeInvoker{reply: respStruct}

	out := handle(context.Background(), inv, Config{Timeout: 0}, value.NewObject().
		Set("method", value.String("/svc.Thing/Do")).
		Set("data", value.NewObject().Set("id", value.String("1"))))

	assert.Equal(t, "/svc.Thing/Do", inv.gotMethod)
	status, ok := out.Get("status")
	require.True(t, ok)
	assert.Equal(t, "ok", status.String())
}

func TestHandleMissingMethod(t *testing.T) {
	out := handle(context.Background(), &fakeInvoker{}, Config{}, value.NewObject())
	isErr, ok := out.Get("is_error")
	require.True(t, ok)
	assert.True(t, isErr.Bool())
}

func TestHandlePropagatesInvokeError(t *testing.T) {
	inv := &fakeInvoker{err: errors.New("unavailable"), reply: &structpb.Struct{}}
	out := handle(context.Background(), inv, Config{}, value.NewObject().Set("method", value.String("/svc.Thing/Do")))
	isErr, ok := out.Get("is_error")
	require.True(t, ok)
	assert.True(t, isErr.Bool())
}
