package config

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ruleflow/phlow/script"
	"github.com/ruleflow/phlow/transform"
)

// Reloader drives a Watcher and rebuilds a transform.Document whenever the
// document on disk changes, handing the new Workflow to a runtime. Unlike
// the teacher's ConfigReloader, there is no partial per-module
// reconfiguration path: any document change triggers a full rebuild,
// because the engine never migrates in-flight ExecutionContexts between
// Workflow generations.
type Reloader struct {
	mu     sync.Mutex
	engine *script.Engine
	logger *zap.Logger
	onDoc  func(*transform.Document)
}

// NewReloader creates a Reloader that compiles changed documents with
// engine and hands the rebuilt Document to onDoc.
func NewReloader(engine *script.Engine, onDoc func(*transform.Document), logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{engine: engine, onDoc: onDoc, logger: logger}
}

// HandleChange rebuilds the workflow from evt.Document and forwards it to
// the reloader's callback. Build errors are logged and leave the
// previously running workflow untouched.
func (r *Reloader) HandleChange(evt ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := transform.Build(r.engine, evt.Document)
	if err != nil {
		r.logger.Error("reload: document does not build, keeping previous workflow",
			zap.String("source", evt.Source), zap.Error(err))
		return
	}

	r.logger.Info("reload: rebuilt workflow", zap.String("source", evt.Source))
	r.onDoc(doc)
}

// BuildInitial parses and builds the document once at startup, outside of
// the watch loop.
func BuildInitial(engine *script.Engine, source Source) (*transform.Document, error) {
	raw, err := source.Load()
	if err != nil {
		return nil, fmt.Errorf("load initial document: %w", err)
	}
	return transform.Build(engine, raw)
}
