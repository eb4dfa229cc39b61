// Package httptrigger is a main-capable reference module: it runs an HTTP
// server and submits each inbound request as a protocol.Package on
// setup.MainSender, replying with the workflow's output, grounded in the
// teacher's module/http_server.go server lifecycle.
package httptrigger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/value"
)

// Config holds the server's listen address and timeouts.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func configFromWith(setup protocol.ModuleSetup) Config {
	cfg := Config{Address: ":8080", ReadTimeout: 30 * time.Second, WriteTimeout: 30 * time.Second}
	if !setup.HasWith {
		return cfg
	}
	if v, ok := setup.With.Get("address"); ok && v.IsString() {
		cfg.Address = v.String()
	}
	return cfg
}

// Factory starts an HTTP server bound to cfg.Address. The module is silent
// (it registers no inbound channel of its own — it never receives `use:`
// calls) but it requires setup.MainSender to forward requests into the
// engine.
func Factory(logger *zap.Logger) func(ctx context.Context, setup protocol.ModuleSetup) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, setup protocol.ModuleSetup) {
		setup.SetupReply <- nil // silent module: never the target of `use:`
		if setup.MainSender == nil {
			logger.Error("httptrigger: no MainSender; module cannot submit requests")
			return
		}
		cfg := configFromWith(setup)

		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			handleRequest(ctx, setup.MainSender, logger, w, r)
		})
		srv := &http.Server{
			Addr:         cfg.Address,
			Handler:      mux,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("httptrigger: server exited", zap.Error(err))
			}
		}
	}
}

func handleRequest(ctx context.Context, mainSender chan<- protocol.Package, logger *zap.Logger, w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	var decoded any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &decoded); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
	}

	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	main := value.FromAny(decoded)
	if v, ok := main.Get("method"); !ok || v.String() == "" {
		main = main.Set("method", value.String(r.Method))
	}
	main = main.Set("path", value.String(r.URL.Path)).Set("request_id", value.String(requestID))

	reply := make(chan value.Value, 1)
	pkg := protocol.Package{RequestData: main, HasRequest: true, Reply: reply}

	select {
	case mainSender <- pkg:
	case <-ctx.Done():
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}

	select {
	case out := <-reply:
		writeJSON(w, out)
	case <-ctx.Done():
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
	case <-r.Context().Done():
	}
}

func writeJSON(w http.ResponseWriter, out value.Value) {
	status := http.StatusOK
	if isErr, ok := out.Get("is_error"); ok && isErr.IsBool() && isErr.Bool() {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value.ToAny(out)); err != nil {
		fmt.Fprintf(w, `{"is_error":true,"message":%q}`, err.Error())
	}
}
