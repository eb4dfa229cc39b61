// Package runtime implements the orchestrator: it loads modules, owns the
// main request/response fan-in channel, and routes inbound Packages from
// the designated main module through the workflow engine.
package runtime

import (
	"context"
	"fmt"
	stdruntime "runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ruleflow/phlow/collector"
	"github.com/ruleflow/phlow/execctx"
	"github.com/ruleflow/phlow/protocol"
	"github.com/ruleflow/phlow/registry"
	"github.com/ruleflow/phlow/step"
	"github.com/ruleflow/phlow/transform"
	"github.com/ruleflow/phlow/value"
	"github.com/ruleflow/phlow/workflow"
)

// ModuleFactory starts a module task. It must send its inbound channel (or
// nil for a silent module) on setup.SetupReply exactly once, then loop
// receiving ModulePackages from that channel until it is closed.
type ModuleFactory func(ctx context.Context, setup protocol.ModuleSetup)

// Runtime owns the registry, the built workflow, and the main channel that
// feeds it. One Runtime corresponds to one loaded document.
type Runtime struct {
	workflow atomic.Pointer[workflow.Workflow]
	registry *registry.Registry
	doc      *transform.Document
	logger   *zap.Logger
	envs     Envs
	sink     collector.Sink

	factories   map[string]ModuleFactory
	mainChan    chan protocol.Package
	moduleChans []chan<- protocol.ModulePackage

	wg       sync.WaitGroup
	gcCancel context.CancelFunc
}

// New builds a Runtime around an already-transformed document.
func New(doc *transform.Document, logger *zap.Logger, envs Envs) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Runtime{
		registry:  registry.New(),
		doc:       doc,
		logger:    logger,
		envs:      envs,
		factories: make(map[string]ModuleFactory),
		mainChan:  make(chan protocol.Package),
	}
	rt.workflow.Store(doc.Workflow)
	return rt
}

// ReplaceWorkflow atomically swaps the Workflow used by future requests.
// In-flight requests already holding a reference to the previous Workflow
// run to completion unaffected; no execctx.Context is migrated between the
// old and new workflow. Intended to be driven by a config.Watcher reacting
// to document changes on disk.
func (r *Runtime) ReplaceWorkflow(wf *workflow.Workflow) {
	r.workflow.Store(wf)
}

// SetCollectorSink installs the observer that receives a record for every
// step executed by any request. Pass nil to stop recording.
func (r *Runtime) SetCollectorSink(sink collector.Sink) {
	r.sink = sink
}

// RegisterModuleFactory associates a module type name (the document's
// `module:` field) with the code that implements it, mirroring the
// teacher's engine.AddModuleType / moduleFactories map.
func (r *Runtime) RegisterModuleFactory(moduleType string, factory ModuleFactory) {
	r.factories[moduleType] = factory
}

// Start spawns every declared module, awaits its registration, then begins
// consuming Packages off the main channel with up to
// envs.PackageConsumersCount requests in flight at once. It returns once
// every module has registered; request processing continues in background
// goroutines until Stop is called.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.gcCancel = cancel
	if r.envs.MinAllocatedMemoryMB > 0 {
		debug.SetMemoryLimit(int64(r.envs.MinAllocatedMemoryMB) * 1024 * 1024)
	}
	if r.envs.GarbageCollectionEnabled {
		r.startGCLoop(ctx)
	}

	decls := append([]transform.ModuleDecl{}, r.doc.Modules...)
	if r.doc.Main != nil {
		decls = append(decls, *r.doc.Main)
	}

	for i, decl := range decls {
		factory, ok := r.factories[decl.ModuleType]
		if !ok {
			return fmt.Errorf("no factory registered for module type %q", decl.ModuleType)
		}

		setupReply := make(chan chan<- protocol.ModulePackage, 1)
		setup := protocol.ModuleSetup{
			ID:         i,
			SetupReply: setupReply,
			With:       decl.With,
			HasWith:    decl.HasWith,
		}
		if r.doc.Main != nil && decl.Name == r.doc.Main.Name {
			setup.MainSender = r.mainChan
		}

		r.wg.Add(1)
		go func(factory ModuleFactory, setup protocol.ModuleSetup) {
			defer r.wg.Done()
			factory(ctx, setup)
		}(factory, setup)

		inbound := <-setupReply
		r.registry.Register(decl.Name, inbound)
		if inbound != nil {
			r.moduleChans = append(r.moduleChans, inbound)
		}
	}

	sem := make(chan struct{}, r.envs.PackageConsumersCount)
	r.wg.Add(1)
	go r.consume(ctx, sem)

	return nil
}

// consume reads Packages off the main channel until it is closed, running
// each against the Workflow on its own goroutine, bounded by sem.
func (r *Runtime) consume(ctx context.Context, sem chan struct{}) {
	defer r.wg.Done()
	for {
		select {
		case pkg, ok := <-r.mainChan:
			if !ok {
				return
			}
			sem <- struct{}{}
			r.wg.Add(1)
			go func(pkg protocol.Package) {
				defer r.wg.Done()
				defer func() { <-sem }()
				r.handle(pkg)
			}(pkg)
		case <-ctx.Done():
			return
		}
	}
}

// handle runs one Package through the workflow and delivers the result (or
// a failure-shaped Value, per spec.md §7) to its reply channel.
func (r *Runtime) handle(pkg protocol.Package) {
	main := value.Null
	if pkg.HasRequest {
		main = pkg.RequestData
	}
	// `with` is the engine's own configuration block; the core runtime
	// does not carry one of its own (modules that need configuration get
	// it via ModuleSetup.With instead), so it is always absent here.
	ctx := execctx.New(main, pkg.HasRequest, value.Value{}, false)

	out, err := r.workflow.Load().Execute(ctx, r.registry, r.sink)
	if err != nil {
		r.logger.Error("request failed", zap.Error(err))
		out = failureValue(err)
	}

	select {
	case pkg.Reply <- out:
	default:
		// Reply channel has no room or was dropped by the caller; a dropped
		// reply on the module side is a documented "fire and forget" case,
		// and the symmetric case here is simply best-effort delivery.
		go func() { pkg.Reply <- out }()
	}
}

// Stop closes the main channel and every module's inbound channel, then
// waits for every module task and in-flight request to finish. Each module
// is expected to exit when its inbound channel closes.
func (r *Runtime) Stop() {
	close(r.mainChan)
	for _, ch := range r.moduleChans {
		close(ch)
	}
	if r.gcCancel != nil {
		r.gcCancel()
	}
	r.wg.Wait()
}

func (r *Runtime) startGCLoop(ctx context.Context) {
	interval := time.Duration(r.envs.GarbageCollectionIntervalSeconds) * time.Second
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stdruntime.GC()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// failureValue renders a per-request fatal error as the ModuleFailure shape
// downstream steps may inspect, per spec.md §7.
func failureValue(err error) value.Value {
	return value.NewObject().
		Set("is_error", value.Bool(true)).
		Set("message", value.String(err.Error()))
}

var _ step.Dispatcher = (*registry.Registry)(nil)
