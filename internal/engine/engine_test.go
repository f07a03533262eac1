package engine

import (
	"errors"
	"testing"

	"cellscript/internal/classify"
	"cellscript/internal/namespace"
	"cellscript/internal/render"
	"cellscript/internal/script"
	"cellscript/internal/source"
	"cellscript/internal/syntax"
	"cellscript/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

const sheet = "Sheet1"

func at(row, col int) types.Address { return types.At(sheet, row, col) }

func seed(ns *namespace.Namespace) {
	ctors := script.Constructors()
	for _, name := range []string{"series", "frame", "error"} {
		ns.Set(name, ctors[name])
	}
	ns.Set(namespace.PlotHelper, starlark.NewBuiltin("plot", func(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		if !script.Evaluating(thread) {
			ns.Set(namespace.PlotBinding, starlark.String("/tmp/a.svg"))
		}
		return starlark.None, nil
	}))
	ns.Set("SHEET", starlark.String(ns.Container()))
}

type harness struct {
	store    *source.Store
	ns       *namespace.Namespace
	engine   *Engine
	recorder *render.Recorder
}

func newHarness(strategy Strategy) *harness {
	host := script.NewStarlarkHost(script.Options{AllowRecursion: true})
	h := &harness{
		store:    source.NewStore(sheet),
		ns:       namespace.New(sheet, seed),
		recorder: render.NewRecorder(),
	}
	h.engine = New(Config{
		Store:      h.store,
		Namespace:  h.ns,
		Host:       host,
		Classifier: classify.New(host, syntax.NewParser()),
		Renderer:   h.recorder,
		Strategy:   strategy,
	})
	return h
}

func (h *harness) add(t *testing.T, addr types.Address, src string) {
	t.Helper()
	i, err := h.store.Add(addr, src)
	require.NoError(t, err)
	require.NoError(t, h.engine.Added(i))
}

func (h *harness) replace(t *testing.T, addr types.Address, src string) {
	t.Helper()
	i, err := h.store.Replace(addr, src)
	require.NoError(t, err)
	require.NoError(t, h.engine.Replaced(i))
}

func (h *harness) remove(t *testing.T, addr types.Address) {
	t.Helper()
	i, err := h.store.Remove(addr)
	require.NoError(t, err)
	h.engine.Forget(addr)
	require.NoError(t, h.engine.Removed(i))
}

func (h *harness) result(t *testing.T, addr types.Address) types.Result {
	t.Helper()
	r, ok := h.engine.Result(addr)
	require.True(t, ok, "no result for %s", addr)
	return r
}

func assertResult(t *testing.T, want, got types.Result) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func scalar(v interface{}) types.Result { return types.ScalarResult{Value: v} }

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================

func TestScenario_EmptySource(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "")
	assertResult(t, types.EmptyResult{}, h.result(t, at(0, 0)))
}

func TestScenario_ScalarAssignment(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "y = 1\nx = 5")
	assertResult(t, scalar(int64(5)), h.result(t, at(0, 0)))
}

func TestScenario_PlotCall(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "plot([1, 2])")
	assertResult(t, types.PlotResult{Path: "/tmp/a.svg"}, h.result(t, at(0, 0)))
}

func TestScenario_RebindPropagates(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "x = 1")
	h.add(t, at(1, 0), "y = x * 10")
	assertResult(t, scalar(int64(10)), h.result(t, at(1, 0)))

	before := h.engine.Executions()
	h.replace(t, at(0, 0), "x = 2")
	assertResult(t, scalar(int64(20)), h.result(t, at(1, 0)))
	assert.Equal(t, 2, h.engine.Executions()-before, "full rebuild reruns both units")
}

func TestScenario_RemoveFirstDropsItsBindings(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "only_here = 1")
	h.add(t, at(1, 0), "z = 5")

	h.remove(t, at(0, 0))

	assert.False(t, h.ns.Has("only_here"))
	assertResult(t, scalar(int64(5)), h.result(t, at(1, 0)))

	want := append(h.ns.SeededNames(), "z")
	assert.Equal(t, want, h.ns.Names(), "namespace holds seeds plus surviving bindings only")
}

func TestScenario_RemoveFirstBreaksDependent(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "a = 1")
	h.add(t, at(1, 0), "b = a + 1")

	h.remove(t, at(0, 0))
	r := h.result(t, at(1, 0))
	require.Equal(t, types.KindError, r.Kind())

	var failure *types.ExecutionFailure
	assert.True(t, errors.As(r.(types.ErrorResult).Cause, &failure))
	assert.Equal(t, at(1, 0), failure.Address)
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestRunAll_Idempotent(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "a = [1, 2, 3]")
	h.add(t, at(0, 1), "b = [[1, 2], [3, 4]]")
	h.add(t, at(1, 0), "c = a[0] + b[1][1]\nc")
	h.add(t, at(2, 0), "boom = 1 // 0")

	h.recorder.Reset()
	require.NoError(t, h.engine.RunAll())
	first := h.recorder.Deliveries()

	h.recorder.Reset()
	require.NoError(t, h.engine.RunAll())
	second := h.recorder.Deliveries()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("RunAll not idempotent (-first +second):\n%s", diff)
	}
	assert.Len(t, first, 4)
}

func TestTailEditTouchesOnlyTail(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "a = 1")
	h.add(t, at(1, 0), "b = a + 1")
	h.add(t, at(2, 0), "c = b + 1")

	var snaps []*namespace.Snapshot
	for _, u := range h.store.Units()[:2] {
		snaps = append(snaps, u.Snapshot)
	}

	before := h.engine.Executions()
	h.recorder.Reset()
	h.replace(t, at(2, 0), "c = b * 100")

	assert.Equal(t, 1, h.engine.Executions()-before)
	assert.Equal(t, []types.Address{at(2, 0)}, h.recorder.Addresses())
	for i, u := range h.store.Units()[:2] {
		assert.Same(t, snaps[i], u.Snapshot, "snapshot of unit %d must be untouched", i)
	}
	assertResult(t, scalar(int64(200)), h.result(t, at(2, 0)))
}

func TestTailRerunStartsFromPredecessorState(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "n = 1")
	h.add(t, at(1, 0), "n = n + 1")
	assertResult(t, scalar(int64(2)), h.result(t, at(1, 0)))

	// Rerunning the tail must not see its own previous effect.
	h.replace(t, at(1, 0), "n = n + 1")
	assertResult(t, scalar(int64(2)), h.result(t, at(1, 0)))

	h.replace(t, at(1, 0), "m = 0")
	v, _ := h.ns.Get("n")
	assert.Equal(t, starlark.MakeInt(1), v)
}

func TestOnlyUnitRerunsFromFreshNamespace(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "leftover = 1")
	h.replace(t, at(0, 0), "x = 2")
	assert.False(t, h.ns.Has("leftover"))
}

func TestRemoveTailRestoresPredecessorState(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "a = 1")
	h.add(t, at(1, 0), "b = 2")
	h.add(t, at(2, 0), "c = 3")

	before := h.engine.Executions()
	h.remove(t, at(2, 0))

	assert.Equal(t, 1, h.engine.Executions()-before, "only the new tail reruns")
	assert.False(t, h.ns.Has("c"))
	assert.True(t, h.ns.Has("b"))
}

func TestRemoveMiddleRebuilds(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "a = 1")
	h.add(t, at(1, 0), "b = 2")
	h.add(t, at(2, 0), "c = 3")

	before := h.engine.Executions()
	h.remove(t, at(1, 0))

	assert.Equal(t, 2, h.engine.Executions()-before)
	assert.False(t, h.ns.Has("b"))
}

func TestRemoveLastRemainingUnitResets(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "a = 1")
	h.remove(t, at(0, 0))

	assert.Equal(t, h.ns.SeededNames(), h.ns.Names())
	_, ok := h.engine.Result(at(0, 0))
	assert.False(t, ok)
}

func TestExecutionFailureKeepsPartialEffects(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "x = 1\ny = 1 // 0")
	h.add(t, at(1, 0), "z = x + 1")

	assert.Equal(t, types.KindError, h.result(t, at(0, 0)).Kind())
	assertResult(t, scalar(int64(2)), h.result(t, at(1, 0)))
}

func TestValuesAreFrozenBetweenUnits(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "xs = [1]")
	h.add(t, at(1, 0), "xs.append(2)")

	assert.Equal(t, types.KindError, h.result(t, at(1, 0)).Kind())
	assertResult(t, types.SeriesResult{Values: []interface{}{int64(1)}}, h.result(t, at(0, 0)))
}

func TestConsistencyViolationAbortsPass(t *testing.T) {
	h := newHarness(Conservative)
	h.add(t, at(0, 0), "a = 1")
	h.add(t, at(1, 0), "b = 2")

	h.store.At(0).Address = at(5, 0)

	err := h.engine.RunAll()
	assert.True(t, errors.Is(err, types.ErrConsistencyViolation))
	state, _ := h.engine.State()
	assert.Equal(t, Clean, state)
}

func TestRendererFailureIsNotPropagated(t *testing.T) {
	h := newHarness(Conservative)
	h.engine.renderer = render.Func(func(types.Address, types.Result) error {
		return errors.New("screen unplugged")
	})
	_, err := h.store.Add(at(0, 0), "x = 1")
	require.NoError(t, err)
	assert.NoError(t, h.engine.RunAll())
	assertResult(t, scalar(int64(1)), h.result(t, at(0, 0)))
}

func TestReentrantPassIsRejected(t *testing.T) {
	h := newHarness(Conservative)
	var inner error
	h.engine.observer = func(types.Address, types.Result) {
		inner = h.engine.RunAll()
	}
	h.add(t, at(0, 0), "x = 1")
	assert.ErrorIs(t, inner, ErrBusy)
}

func TestStateMachine(t *testing.T) {
	h := newHarness(Conservative)
	state, _ := h.engine.State()
	assert.Equal(t, Clean, state)

	h.engine.MarkDirty(3)
	h.engine.MarkDirty(5)
	state, idx := h.engine.State()
	assert.Equal(t, Dirty, state)
	assert.Equal(t, 3, idx, "earliest pending index wins")

	require.NoError(t, h.engine.RunAll())
	state, _ = h.engine.State()
	assert.Equal(t, Clean, state)
}

// =============================================================================
// REPLAY STRATEGY
// =============================================================================

func TestReplaySuffix_ReplaceMiddle(t *testing.T) {
	h := newHarness(ReplaySuffix)
	h.add(t, at(0, 0), "a = 1")
	h.add(t, at(1, 0), "b = a + 1")
	h.add(t, at(2, 0), "c = b + 1")

	first := h.store.At(0).Snapshot
	before := h.engine.Executions()
	h.replace(t, at(1, 0), "b = a + 10")

	assert.Equal(t, 2, h.engine.Executions()-before, "units before the change are not rerun")
	assert.Same(t, first, h.store.At(0).Snapshot)
	assertResult(t, scalar(int64(12)), h.result(t, at(2, 0)))
}

func TestReplaySuffix_InsertUsesSuccessorSnapshot(t *testing.T) {
	h := newHarness(ReplaySuffix)
	h.add(t, at(0, 0), "a = 1")
	h.add(t, at(2, 0), "c = a + 1")
	h.add(t, at(3, 0), "d = c * 2")
	first := h.store.At(0).Snapshot

	before := h.engine.Executions()
	h.add(t, at(1, 0), "b = 100")

	assert.Equal(t, 3, h.engine.Executions()-before)
	assert.Same(t, first, h.store.At(0).Snapshot)
	assert.True(t, h.ns.Has("b"))
	assertResult(t, scalar(int64(4)), h.result(t, at(3, 0)))
}

func TestReplaySuffix_MatchesConservative(t *testing.T) {
	sources := map[types.Address]string{
		at(0, 0): "a = 1",
		at(1, 0): "b = a * 2",
		at(2, 0): "c = [a, b]",
		at(3, 0): "d = frame([['x', 'y'], c])",
	}
	order := []types.Address{at(0, 0), at(1, 0), at(2, 0), at(3, 0)}

	run := func(strategy Strategy) []render.Delivery {
		h := newHarness(strategy)
		for _, addr := range order {
			h.add(t, addr, sources[addr])
		}
		h.replace(t, at(1, 0), "b = a * 3")
		h.remove(t, at(2, 0))
		h.add(t, at(2, 0), "c = [b, a]")

		var out []render.Delivery
		for _, addr := range order {
			out = append(out, render.Delivery{Address: addr, Result: h.result(t, addr)})
		}
		return out
	}

	if diff := cmp.Diff(run(Conservative), run(ReplaySuffix)); diff != "" {
		t.Errorf("strategies disagree (-conservative +replay):\n%s", diff)
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Conservative, s)

	s, err = ParseStrategy("replay_suffix")
	require.NoError(t, err)
	assert.Equal(t, ReplaySuffix, s)

	_, err = ParseStrategy("dataflow")
	assert.Error(t, err)
}
