// Package transform converts a parsed document (value.Value, already
// format-agnostic thanks to the config package) into a workflow.Workflow by recursive
// descent, assigning pipeline ids in post-order so the outermost steps
// array becomes the entry pipeline.
package transform

import (
	"fmt"

	"github.com/ruleflow/phlow/id"
	"github.com/ruleflow/phlow/pipeline"
	"github.com/ruleflow/phlow/script"
	"github.com/ruleflow/phlow/step"
	"github.com/ruleflow/phlow/value"
	"github.com/ruleflow/phlow/workflow"
)

// ModuleDecl is one entry of the document's `modules:` list, or the
// designated `main:` module. With/HasWith carries the module's config
// passthrough block, forwarded verbatim as ModuleSetup.With by the runtime.
type ModuleDecl struct {
	Name       string
	ModuleType string
	With       value.Value
	HasWith    bool
}

// Document is everything the transform extracts: the runnable Workflow
// plus the module manifest the Runtime needs to spawn and wire modules.
type Document struct {
	Workflow *workflow.Workflow
	Modules  []ModuleDecl
	Main     *ModuleDecl
}

// Build runs the transform against doc, compiling every script field
// against engine.
func Build(engine *script.Engine, doc value.Value) (*Document, error) {
	if !doc.IsObject() {
		return nil, &ConfigError{Reason: "document must be an object"}
	}

	b := &builder{
		engine:      engine,
		pipelines:   make(map[int]*pipeline.Pipeline),
		branchOnly:  make(map[int]bool),
		moduleNames: make(map[string]bool),
	}

	modules, mainDecl, err := b.parseModules(doc)
	if err != nil {
		return nil, err
	}

	stepsVal, ok := doc.Get("steps")
	if !ok || !stepsVal.IsArray() {
		return nil, &ConfigError{Reason: "document missing steps array"}
	}

	root, err := b.buildPipeline(stepsVal.Array())
	if err != nil {
		return nil, err
	}

	if err := b.validateGotoTargets(); err != nil {
		return nil, err
	}

	wf := &workflow.Workflow{Pipelines: b.pipelines, Entry: root.ID}
	return &Document{Workflow: wf, Modules: modules, Main: mainDecl}, nil
}

// builder holds the in-progress state of one Build call: the next pipeline
// id to assign, every pipeline built so far, which of those ids are
// branch-only (entered exclusively via their owning step's then/else, per
// the Open Question resolution in DESIGN.md), and the set of declared
// module names for `use` validation.
type builder struct {
	engine      *script.Engine
	nextID      int
	pipelines   map[int]*pipeline.Pipeline
	branchOnly  map[int]bool
	moduleNames map[string]bool
	gotoTargets []step.GotoTarget
}

func (b *builder) parseModules(doc value.Value) ([]ModuleDecl, *ModuleDecl, error) {
	var decls []ModuleDecl
	if modsVal, ok := doc.Get("modules"); ok {
		if !modsVal.IsArray() {
			return nil, nil, &ConfigError{Reason: "modules must be an array"}
		}
		for _, m := range modsVal.Array() {
			modType, ok := getString(m, "module")
			if !ok {
				return nil, nil, &ConfigError{Reason: "module entry missing module type"}
			}
			name, hasName := getString(m, "name")
			if !hasName {
				name = modType
			}
			withVal, hasWith := m.Get("with")
			decls = append(decls, ModuleDecl{Name: name, ModuleType: modType, With: withVal, HasWith: hasWith})
			b.moduleNames[name] = true
		}
	}

	var mainDecl *ModuleDecl
	if mainVal, ok := doc.Get("main"); ok {
		modType, ok := getString(mainVal, "module")
		if !ok {
			return nil, nil, &ConfigError{Reason: "main block missing module type"}
		}
		withVal, hasWith := mainVal.Get("with")
		mainDecl = &ModuleDecl{Name: modType, ModuleType: modType, With: withVal, HasWith: hasWith}
		b.moduleNames[mainDecl.Name] = true
	}

	return decls, mainDecl, nil
}

func (b *builder) buildPipeline(stepsDoc []value.Value) (*pipeline.Pipeline, error) {
	workers := make([]*step.Worker, 0, len(stepsDoc))
	for _, raw := range stepsDoc {
		w, err := b.buildStep(raw)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}

	pid := b.nextID
	b.nextID++
	p := &pipeline.Pipeline{ID: pid, Steps: workers}
	b.pipelines[pid] = p
	return p, nil
}

func (b *builder) buildStep(raw value.Value) (*step.Worker, error) {
	if !raw.IsObject() {
		return nil, &ConfigError{Reason: "step must be an object"}
	}

	w := &step.Worker{}

	if name, ok := getString(raw, "id"); ok {
		w.ID = id.New(name)
	} else if name, ok := getString(raw, "label"); ok {
		w.ID = id.New(name)
	}

	cond, err := b.buildCondition(raw)
	if err != nil {
		return nil, err
	}
	w.Condition = cond

	if thenVal, ok := raw.Get("then"); ok {
		p, err := b.buildBranch(thenVal, "then")
		if err != nil {
			return nil, err
		}
		b.branchOnly[p.ID] = true
		w.ThenBranch = &p.ID
	}
	if elseVal, ok := raw.Get("else"); ok {
		p, err := b.buildBranch(elseVal, "else")
		if err != nil {
			return nil, err
		}
		b.branchOnly[p.ID] = true
		w.ElseBranch = &p.ID
	}
	if w.Condition == nil && (w.ThenBranch != nil || w.ElseBranch != nil) {
		return nil, &ConditionInvalid{Reason: "then/else present without a condition"}
	}

	if gotoVal, ok := raw.Get("goto"); ok {
		target, err := b.buildGoto(gotoVal)
		if err != nil {
			return nil, err
		}
		w.Goto = target
		b.gotoTargets = append(b.gotoTargets, *target)
	}

	if retVal, ok := raw.Get("return"); ok {
		expr, err := script.Compile(b.engine, retVal)
		if err != nil {
			return nil, err
		}
		w.ReturnExpr = expr
	}

	if useVal, ok := getString(raw, "use"); ok {
		if !b.moduleNames[useVal] {
			return nil, &ModuleNotFound{Name: useVal}
		}
		call := &step.ModuleCall{Module: useVal}
		if inputVal, ok := raw.Get("input"); ok {
			expr, err := script.Compile(b.engine, inputVal)
			if err != nil {
				return nil, err
			}
			call.InputExpr = expr
		}
		w.ModuleCall = call
	}

	if payloadVal, ok := raw.Get("payload"); ok {
		expr, err := script.Compile(b.engine, payloadVal)
		if err != nil {
			return nil, err
		}
		w.PayloadExpr = expr
	}

	return w, nil
}

func (b *builder) buildBranch(branchVal value.Value, label string) (*pipeline.Pipeline, error) {
	stepsVal, ok := branchVal.Get("steps")
	if !ok || !stepsVal.IsArray() {
		return nil, &ConfigError{Reason: fmt.Sprintf("%s block missing steps array", label)}
	}
	return b.buildPipeline(stepsVal.Array())
}

func (b *builder) buildGoto(gotoVal value.Value) (*step.GotoTarget, error) {
	pidVal, ok := gotoVal.Get("pipeline")
	if !ok {
		return nil, &ConfigError{Reason: "goto missing pipeline"}
	}
	stepIdx := 0
	if sv, ok := gotoVal.Get("step"); ok {
		stepIdx = int(sv.Int())
	}
	return &step.GotoTarget{Pipeline: int(pidVal.Int()), Step: stepIdx}, nil
}

// buildCondition reads a condition from either the bare `assert` sugar or
// the nested `condition: { assert }` form. A step with neither has no
// condition at all - that is only an error if the step also declares
// then/else, checked by the caller once both are known.
func (b *builder) buildCondition(raw value.Value) (*script.Condition, error) {
	if assertVal, ok := getString(raw, "assert"); ok {
		return script.NewCondition(b.engine, assertVal)
	}
	if condVal, ok := raw.Get("condition"); ok {
		assertVal, ok := getString(condVal, "assert")
		if !ok {
			return nil, &ConditionInvalid{Reason: "condition block missing assert"}
		}
		return script.NewCondition(b.engine, assertVal)
	}
	return nil, nil
}

// validateGotoTargets enforces that every goto names a pipeline that
// actually exists, and that it never targets a branch-only pipeline -
// those may only be entered via their owning step's then/else (Open
// Question resolution, see DESIGN.md).
func (b *builder) validateGotoTargets() error {
	for _, target := range b.gotoTargets {
		if _, exists := b.pipelines[target.Pipeline]; !exists {
			return &ConfigError{Reason: fmt.Sprintf("goto targets unknown pipeline %d", target.Pipeline)}
		}
		if b.branchOnly[target.Pipeline] {
			return &ConfigError{Reason: fmt.Sprintf("goto may not target branch pipeline %d directly", target.Pipeline)}
		}
	}
	return nil
}

func getString(v value.Value, key string) (string, bool) {
	field, ok := v.Get(key)
	if !ok || !field.IsString() {
		return "", false
	}
	return field.String(), true
}
