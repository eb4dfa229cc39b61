// Command phlowd is the standalone runtime binary: it loads a workflow
// document, wires the built-in reference modules, starts the engine, and
// blocks until SIGINT or SIGTERM; with -watch set, a change to the document
// on disk rebuilds and swaps the workflow without stopping. Grounded in the teacher's cmd/server/main.go flag
// parsing and signal-driven shutdown, stripped of everything outside
// spec scope (billing, cloud providers, the plugin marketplace, the admin
// UI).
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ruleflow/phlow/collector"
	"github.com/ruleflow/phlow/config"
	"github.com/ruleflow/phlow/modules/cache"
	"github.com/ruleflow/phlow/modules/clitrigger"
	"github.com/ruleflow/phlow/modules/echo"
	"github.com/ruleflow/phlow/modules/fs"
	"github.com/ruleflow/phlow/modules/httptrigger"
	"github.com/ruleflow/phlow/modules/jwtauth"
	"github.com/ruleflow/phlow/modules/logmod"
	"github.com/ruleflow/phlow/modules/postgres"
	"github.com/ruleflow/phlow/modules/queue"
	"github.com/ruleflow/phlow/modules/rpcmod"
	"github.com/ruleflow/phlow/modules/sleep"
	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/runtime"
	"github.com/ruleflow/phlow/script"
	"github.com/ruleflow/phlow/transform"
)

var (
	configFile  = flag.String("config", "", "path to the workflow document (json/yaml/toml)")
	watch       = flag.Bool("watch", false, "rebuild the workflow whenever -config changes on disk")
	metricsAddr = flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address (e.g. :9090)")
	redisAddr   = flag.String("redis-addr", "localhost:6379", "address used by the cache module")
	postgresDSN = flag.String("postgres-dsn", "", "DSN used by the postgres module")
	natsURL     = flag.String("nats-url", "", "URL used by the queue module")
	grpcTarget  = flag.String("grpc-target", "", "dial target used by the rpc module")
)

func main() {
	flag.Parse()

	if *configFile == "" {
		log.Fatal("phlowd: -config is required")
	}

	envs := runtime.LoadEnvs()
	logger := newLogger(envs.LogLevel)
	defer logger.Sync() //nolint:errcheck

	engine := script.NewEngine()
	source := config.NewFileSource(*configFile)

	doc, err := config.BuildInitial(engine, source)
	if err != nil {
		log.Fatalf("phlowd: %v", err)
	}

	rt := runtime.New(doc, logger, envs)
	registerModules(rt, logger)

	sink, sinkErr := setupCollector(*metricsAddr, logger)
	if sinkErr != nil {
		log.Fatalf("phlowd: %v", sinkErr)
	}
	rt.SetCollectorSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	if err := rt.Start(ctx); err != nil {
		log.Fatalf("phlowd: start: %v", err)
	}

	var watcher *config.Watcher
	if *watch {
		watcher = startWatcher(rt, engine, source, logger)
	}

	<-ctx.Done()
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Error("stop watcher", zap.Error(err))
		}
	}
	rt.Stop()
	logger.Info("shutdown complete")
}

// registerModules wires every reference module type built against this
// document's declarations. Modules with an external client take their
// connection settings from process flags: cache instances all share one
// client built here, while each declared postgres, queue or rpc instance
// opens its own connection when its factory runs. postgres, queue and rpc
// are registered only when their flag is set.
func registerModules(rt *runtime.Runtime, logger *zap.Logger) {
	rt.RegisterModuleFactory("echo", echo.Factory)
	rt.RegisterModuleFactory("fs", fs.Factory)
	rt.RegisterModuleFactory("sleep", sleep.Factory)
	rt.RegisterModuleFactory("jwt", jwtauth.Factory)
	rt.RegisterModuleFactory("log", logmod.Factory(logger))
	rt.RegisterModuleFactory("http", httptrigger.Factory(logger))

	cacheClient := cache.NewClient(cache.Config{Address: *redisAddr})
	rt.RegisterModuleFactory("cache", cache.Factory(cacheClient, cache.Config{Address: *redisAddr}))

	if *postgresDSN != "" {
		rt.RegisterModuleFactory("postgres", func(ctx context.Context, setup protocol.ModuleSetup) {
			pool, err := postgres.NewPool(ctx, postgres.Config{DSN: *postgresDSN})
			if err != nil {
				logger.Error("postgres: connect failed", zap.Error(err))
				setup.SetupReply <- nil
				return
			}
			postgres.Factory(pool)(ctx, setup)
		})
	}

	if *natsURL != "" {
		rt.RegisterModuleFactory("queue", func(ctx context.Context, setup protocol.ModuleSetup) {
			conn, err := queue.NewConn(queue.Config{URL: *natsURL})
			if err != nil {
				logger.Error("queue: connect failed", zap.Error(err))
				setup.SetupReply <- nil
				return
			}
			queue.Factory(conn)(ctx, setup)
		})
	}

	if *grpcTarget != "" {
		rt.RegisterModuleFactory("rpc", func(ctx context.Context, setup protocol.ModuleSetup) {
			conn, err := rpcmod.Dial(rpcmod.Config{Target: *grpcTarget, Timeout: 5 * time.Second})
			if err != nil {
				logger.Error("rpc: dial failed", zap.Error(err))
				setup.SetupReply <- nil
				return
			}
			rpcmod.Factory(conn, rpcmod.Config{Target: *grpcTarget, Timeout: 5 * time.Second})(ctx, setup)
		})
	}

	rt.RegisterModuleFactory("cli", clitrigger.Factory(flag.Args(), os.Stdout))
}

// startWatcher wires a config.Watcher + config.Reloader pair that rebuilds
// the document on change and atomically swaps it into rt.
func startWatcher(rt *runtime.Runtime, engine *script.Engine, source *config.FileSource, logger *zap.Logger) *config.Watcher {
	reloader := config.NewReloader(engine, func(doc *transform.Document) {
		rt.ReplaceWorkflow(doc.Workflow)
	}, logger)

	watcher := config.NewWatcher(source, reloader.HandleChange, config.WithLogger(logger))
	if err := watcher.Start(); err != nil {
		logger.Error("watcher: failed to start", zap.Error(err))
		return nil
	}
	return watcher
}

func setupCollector(addr string, logger *zap.Logger) (collector.Sink, error) {
	if addr == "" {
		return collector.NopSink{}, nil
	}
	reg := prometheus.NewRegistry()
	sink := collector.NewPrometheusSink(reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return sink, nil
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if level != "" {
		if lvl, err := zap.ParseAtomicLevel(level); err == nil {
			cfg.Level = lvl
		}
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
