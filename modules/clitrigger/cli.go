// Package clitrigger is a main-capable reference module: it parses process
// arguments with pflag, submits a single request to the engine over
// setup.MainSender, prints the result, and returns — grounded in the
// original modules/cli/src/lib.rs one-shot run/print/exit cycle.
package clitrigger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// Args holds the parsed command-line invocation.
type Args struct {
	Input   string
	Timeout time.Duration
}

// ParseArgs parses argv (excluding the program name) into Args.
func ParseArgs(argv []string) (Args, error) {
	fs := pflag.NewFlagSet("phlow", pflag.ContinueOnError)
	input := fs.String("input", "{}", "JSON payload submitted as the request body")
	timeout := fs.Duration("timeout", 30*time.Second, "maximum time to wait for a response")
	if err := fs.Parse(argv); err != nil {
		return Args{}, err
	}
	return Args{Input: *input, Timeout: *timeout}, nil
}

// Factory runs one request/response cycle against setup.MainSender using
// argv, writing the JSON result to out, then returns. Like the original
// CLI module it is a "main" module: it never receives `use:` calls
// (SetupReply always gets nil) but requires MainSender to submit work.
func Factory(argv []string, out io.Writer) func(ctx context.Context, setup protocol.ModuleSetup) {
	return func(ctx context.Context, setup protocol.ModuleSetup) {
		setup.SetupReply <- nil
		if setup.MainSender == nil {
			fmt.Fprintln(out, `{"is_error":true,"message":"clitrigger: no MainSender"}`)
			return
		}

		args, err := ParseArgs(argv)
		if err != nil {
			fmt.Fprintf(out, "{\"is_error\":true,\"message\":%q}\n", err.Error())
			return
		}

		var decoded any
		if err := json.Unmarshal([]byte(args.Input), &decoded); err != nil {
			fmt.Fprintf(out, "{\"is_error\":true,\"message\":%q}\n", "invalid --input JSON: "+err.Error())
			return
		}

		reply := make(chan value.Value, 1)
		callCtx, cancel := context.WithTimeout(ctx, args.Timeout)
		defer cancel()

		select {
		case setup.MainSender <- protocol.Package{RequestData: value.FromAny(decoded), HasRequest: true, Reply: reply}:
		case <-callCtx.Done():
			fmt.Fprintln(out, `{"is_error":true,"message":"timed out submitting request"}`)
			return
		}

		select {
		case result := <-reply:
			enc := json.NewEncoder(out)
			_ = enc.Encode(value.ToAny(result))
		case <-callCtx.Done():
			fmt.Fprintln(out, `{"is_error":true,"message":"timed out waiting for response"}`)
		}
	}
}
