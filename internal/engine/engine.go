// Package engine re-executes a container's fragments after each change.
//
// Ordering is positional: every unit may read any binding made by an
// earlier unit, so the tail is the only position that can rerun alone.
// Changes anywhere else rebuild the chain from a known namespace state.
package engine

import (
	"errors"
	"fmt"
	"time"

	"cellscript/internal/classify"
	"cellscript/internal/logging"
	"cellscript/internal/namespace"
	"cellscript/internal/render"
	"cellscript/internal/script"
	"cellscript/internal/source"
	"cellscript/internal/types"
)

// Strategy selects what RunFrom does for a change before the tail.
type Strategy string

const (
	// Conservative rebuilds everything.
	Conservative Strategy = "conservative"
	// ReplaySuffix restores the nearest valid snapshot and reruns only the
	// units from the change onward.
	ReplaySuffix Strategy = "replay_suffix"
)

// ParseStrategy maps a config value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", Conservative:
		return Conservative, nil
	case ReplaySuffix:
		return ReplaySuffix, nil
	}
	return "", fmt.Errorf("unknown engine strategy %q", s)
}

// ErrBusy is returned when a pass is requested while another is running on
// the same engine. Callers must serialize engine calls.
var ErrBusy = errors.New("engine: pass already in progress")

// State is the per-container change state.
type State int

const (
	Clean State = iota
	Dirty
)

func (s State) String() string {
	if s == Dirty {
		return "dirty"
	}
	return "clean"
}

// Observer sees every result before the renderer does.
type Observer func(addr types.Address, r types.Result)

// Config wires an Engine.
type Config struct {
	Store      *source.Store
	Namespace  *namespace.Namespace
	Host       script.Host
	Classifier *classify.Engine
	Renderer   render.Renderer
	Strategy   Strategy
	Observer   Observer
}

// Engine runs one container's units. It is not safe for concurrent use.
type Engine struct {
	store      *source.Store
	ns         *namespace.Namespace
	host       script.Host
	classifier *classify.Engine
	renderer   render.Renderer
	strategy   Strategy
	observer   Observer

	results map[types.Address]types.Result

	state      State
	dirtyIndex int
	running    bool
	executions int
}

// New creates an engine. Store, Namespace, Host and Classifier are required.
func New(cfg Config) *Engine {
	if cfg.Strategy == "" {
		cfg.Strategy = Conservative
	}
	return &Engine{
		store:      cfg.Store,
		ns:         cfg.Namespace,
		host:       cfg.Host,
		classifier: cfg.Classifier,
		renderer:   cfg.Renderer,
		strategy:   cfg.Strategy,
		observer:   cfg.Observer,
		results:    make(map[types.Address]types.Result),
	}
}

// Store returns the engine's source store.
func (e *Engine) Store() *source.Store { return e.store }

// Namespace returns the live namespace.
func (e *Engine) Namespace() *namespace.Namespace { return e.ns }

// Strategy returns the configured replay strategy.
func (e *Engine) Strategy() Strategy { return e.strategy }

// State returns the change state and, when dirty, the pending index.
func (e *Engine) State() (State, int) { return e.state, e.dirtyIndex }

// Executions counts RunUnit calls since creation.
func (e *Engine) Executions() int { return e.executions }

// Result returns the last result produced for addr.
func (e *Engine) Result(addr types.Address) (types.Result, bool) {
	r, ok := e.results[addr]
	return r, ok
}

// Forget drops the recorded result for a removed address.
func (e *Engine) Forget(addr types.Address) {
	delete(e.results, addr)
}

// MarkDirty records a pending change at index.
func (e *Engine) MarkDirty(index int) {
	if e.state == Dirty && index > e.dirtyIndex {
		return
	}
	e.state = Dirty
	e.dirtyIndex = index
}

// =============================================================================
// PASSES
// =============================================================================

// RunUnit executes one unit against the live namespace and delivers its
// result. Execution failures become Error results; the unit still counts as
// run and its partial bindings remain visible to later units.
func (e *Engine) RunUnit(u *source.Unit) types.Result {
	if u.Snapshot == nil {
		u.Snapshot = e.ns.Snapshot()
	}
	e.executions++

	err := e.host.Exec(u.Address, u.Source, e.ns)
	e.ns.Freeze()

	var result types.Result
	if err != nil {
		failure := &types.ExecutionFailure{Address: u.Address, Err: err}
		logging.EngineDebug("%v", failure)
		result = types.ErrorResult{Cause: failure}
	} else {
		result = e.classifier.Classify(u.Address, u.Source, e.ns)
	}

	e.deliver(u.Address, result)
	return result
}

// RunAll resets the namespace and runs every unit in store order.
func (e *Engine) RunAll() error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()
	return e.runAll()
}

// slowPass is the full-rebuild duration above which a warning is logged.
const slowPass = 2 * time.Second

func (e *Engine) runAll() error {
	timer := logging.StartTimer(logging.CategoryEngine, "RunAll "+e.store.Container())
	defer timer.StopWithThreshold(slowPass)

	if err := e.store.Verify(); err != nil {
		logging.EngineError("%s: aborting pass: %v", e.store.Container(), err)
		return err
	}

	e.store.ClearSnapshots()
	e.ns.Reset()
	e.ns.Freeze()

	logging.Engine("%s: full rebuild of %d units", e.store.Container(), e.store.Len())
	failed := 0
	for _, u := range e.store.Units() {
		if e.RunUnit(u).Kind() == types.KindError {
			failed++
		}
	}
	logging.Get(logging.CategoryEngine).StructuredLog("info", "full rebuild complete", map[string]interface{}{
		"container": e.store.Container(),
		"units":     e.store.Len(),
		"failed":    failed,
	})
	return nil
}

// RunFrom reruns the chain after a change at index. At the tail only the
// tail unit reruns, starting from its own snapshot (the state right after
// its predecessor ran), from a fresh namespace when it is the only unit, or
// from the current namespace when it has never run. Before the tail the
// strategy decides.
func (e *Engine) RunFrom(index int) error {
	if err := e.begin(); err != nil {
		return err
	}
	defer e.end()

	n := e.store.Len()
	if n == 0 {
		return e.runAll()
	}
	if index >= n-1 {
		if err := e.store.Verify(); err != nil {
			logging.EngineError("%s: aborting pass: %v", e.store.Container(), err)
			return err
		}
		tail := e.store.At(n - 1)
		switch {
		case tail.Snapshot != nil:
			e.ns.Restore(tail.Snapshot)
		case n == 1:
			e.ns.Reset()
			e.ns.Freeze()
		}
		logging.EngineDebug("%s: rerunning tail %s", e.store.Container(), tail.Address)
		e.RunUnit(tail)
		return nil
	}

	if e.strategy == ReplaySuffix {
		if index < 0 {
			index = 0
		}
		if ok, err := e.replaySuffix(index); ok || err != nil {
			return err
		}
		logging.EngineDebug("%s: no snapshot at %d, falling back to full rebuild", e.store.Container(), index)
	}
	return e.runAll()
}

// replaySuffix restores the snapshot taken before the unit at index (or,
// for a new unit, before its successor) and reruns index..n-1.
func (e *Engine) replaySuffix(index int) (bool, error) {
	if err := e.store.Verify(); err != nil {
		logging.EngineError("%s: aborting pass: %v", e.store.Container(), err)
		return false, err
	}

	n := e.store.Len()
	snap := e.store.At(index).Snapshot
	if snap == nil && index+1 < n {
		snap = e.store.At(index + 1).Snapshot
	}
	if snap == nil {
		return false, nil
	}

	e.ns.Restore(snap)
	for i := index; i < n; i++ {
		e.store.At(i).Snapshot = nil
	}

	logging.Engine("%s: replaying %d units from index %d", e.store.Container(), n-index, index)
	for i := index; i < n; i++ {
		e.RunUnit(e.store.At(i))
	}
	return true, nil
}

// =============================================================================
// CHANGE POLICY
// =============================================================================

// Added reruns after a unit was inserted at index.
func (e *Engine) Added(index int) error {
	e.MarkDirty(index)
	return e.RunFrom(index)
}

// Replaced reruns after the unit at index changed text.
func (e *Engine) Replaced(index int) error {
	e.MarkDirty(index)
	return e.RunFrom(index)
}

// Removed reruns after the unit at index was deleted. Removing the first or
// the last remaining unit rebuilds everything; otherwise the chain resumes
// at the unit before the removed one.
func (e *Engine) Removed(index int) error {
	e.MarkDirty(index)
	if index == 0 || e.store.Len() == 0 {
		return e.RunAll()
	}
	return e.RunFrom(index - 1)
}

func (e *Engine) begin() error {
	if e.running {
		return ErrBusy
	}
	e.running = true
	return nil
}

func (e *Engine) end() {
	e.running = false
	e.state = Clean
	e.dirtyIndex = 0
}

func (e *Engine) deliver(addr types.Address, r types.Result) {
	e.results[addr] = r
	if e.observer != nil {
		e.observer(addr, r)
	}
	if e.renderer == nil {
		return
	}
	if err := e.renderer.Render(addr, r); err != nil {
		logging.RenderWarn("%s: delivery failed: %v", addr, err)
	}
}
