// Package fs is a reference module exposing filesystem read/write
// operations to pipelines, grounded in the original implementation's
// read/write action shape (modules/fs/src/input.rs): a request is
// {"action": "read"|"write", "path": ..., "content": ..., "force": ...}.
// Reading a directory returns the names of its immediate entries only;
// subdirectories are not walked.
package fs

import (
	"context"
	"fmt"
	"os"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// Factory registers the module's inbound channel and services read/write
// requests against the local filesystem until the channel closes.
func Factory(ctx context.Context, setup protocol.ModuleSetup) {
	inbound := make(chan protocol.ModulePackage)
	setup.SetupReply <- inbound

	for {
		select {
		case pkg, ok := <-inbound:
			if !ok {
				return
			}
			out := handle(pkg.Input)
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

func handle(input value.Value) value.Value {
	action, ok := input.Get("action")
	if !ok || !action.IsString() {
		return failure("missing field 'action'")
	}
	pathVal, ok := input.Get("path")
	if !ok {
		return failure("missing field 'path'")
	}
	path := pathVal.String()

	switch action.String() {
	case "read":
		return readPath(path)
	case "write":
		content, _ := input.Get("content")
		force := false
		if f, ok := input.Get("force"); ok && f.IsBool() {
			force = f.Bool()
		}
		return writePath(path, content, force)
	default:
		return failure("invalid action: expected 'read' or 'write'")
	}
}

func readPath(path string) value.Value {
	info, err := os.Stat(path)
	if err != nil {
		return failure(err.Error())
	}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return failure(err.Error())
		}
		names := make([]value.Value, len(entries))
		for i, e := range entries {
			names[i] = value.String(e.Name())
		}
		return value.NewObject().Set("entries", value.Array(names...))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return failure(err.Error())
	}
	return value.NewObject().Set("content", value.String(string(data)))
}

func writePath(path string, content value.Value, force bool) value.Value {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return failure(fmt.Sprintf("%s already exists; set force=true to overwrite", path))
		}
	}
	if err := os.WriteFile(path, []byte(content.String()), 0o644); err != nil {
		return failure(err.Error())
	}
	return value.NewObject().Set("written", value.Bool(true))
}

func failure(msg string) value.Value {
	return value.NewObject().Set("is_error", value.Bool(true)).Set("message", value.String(msg))
}
