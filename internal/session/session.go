package session

import (
	"errors"
	"fmt"

	"cellscript/internal/engine"
	"cellscript/internal/helpers"
	"cellscript/internal/logging"
	"cellscript/internal/namespace"
	"cellscript/internal/source"
	"cellscript/internal/store"
	"cellscript/internal/types"

	"github.com/hashicorp/go-multierror"
)

// Session is one container: its namespace, its ordered units and the engine
// that reruns them. Methods must be called from one goroutine at a time.
type Session struct {
	container string
	wb        *Workbook
	ns        *namespace.Namespace
	units     *source.Store
	engine    *engine.Engine
}

func newSession(w *Workbook, id string) *Session {
	ns := namespace.New(id, helpers.Seeder(helpers.Env{Resolver: w, Plots: w.plots}))
	units := source.NewStore(id)
	return &Session{
		container: id,
		wb:        w,
		ns:        ns,
		units:     units,
		engine: engine.New(engine.Config{
			Store:      units,
			Namespace:  ns,
			Host:       w.host,
			Classifier: w.classifier,
			Renderer:   w.renderer,
			Strategy:   w.strategy,
			Observer:   w.observe,
		}),
	}
}

// Container returns the container id.
func (s *Session) Container() string { return s.container }

// Namespace returns the live namespace.
func (s *Session) Namespace() *namespace.Namespace { return s.ns }

// Units returns the ordered source store.
func (s *Session) Units() *source.Store { return s.units }

// Engine returns the execution engine.
func (s *Session) Engine() *engine.Engine { return s.engine }

// Result returns the last result delivered for addr.
func (s *Session) Result(addr types.Address) (types.Result, bool) {
	return s.engine.Result(addr)
}

// Results returns the current result of every unit in order.
func (s *Session) Results() []Cell {
	out := make([]Cell, 0, s.units.Len())
	for _, u := range s.units.Units() {
		r, ok := s.engine.Result(u.Address)
		if !ok {
			r = types.EmptyResult{}
		}
		out = append(out, Cell{Address: u.Address, Source: u.Source, Result: r})
	}
	return out
}

// Cell pairs a unit's source with its current result.
type Cell struct {
	Address types.Address
	Source  string
	Result  types.Result
}

// OnSourceChanged adds or replaces the fragment at addr, writes it through to
// the source store and reruns what the change affects. The returned result is
// the one delivered for addr.
func (s *Session) OnSourceChanged(addr types.Address, text string) (types.Result, error) {
	var (
		index int
		err   error
		added bool
	)
	if _, exists := s.units.IndexOf(addr); exists {
		index, err = s.units.Replace(addr, text)
	} else {
		index, err = s.units.Add(addr, text)
		added = true
	}
	if err != nil {
		return nil, err
	}
	logging.SessionDebug("%s: source changed at index %d (added=%v)", addr, index, added)

	var result *multierror.Error
	if s.wb.sources != nil {
		if err := s.wb.sources.Write(addr, text); err != nil {
			logging.SessionWarn("%s: write-through failed: %v", addr, err)
			result = multierror.Append(result, fmt.Errorf("persist %s: %w", addr, err))
		}
	}

	if added {
		err = s.engine.Added(index)
	} else {
		err = s.engine.Replaced(index)
	}
	if err != nil {
		result = multierror.Append(result, err)
	}

	r, ok := s.engine.Result(addr)
	if !ok {
		r = types.EmptyResult{}
	}
	return r, result.ErrorOrNil()
}

// OnSourceRemoved deletes the fragment at addr, clears its rendered result and
// reruns the chain.
func (s *Session) OnSourceRemoved(addr types.Address) error {
	index, err := s.units.Remove(addr)
	if err != nil {
		return err
	}
	logging.SessionDebug("%s: source removed at index %d", addr, index)

	s.engine.Forget(addr)
	s.wb.cache.Invalidate(addr.Container, addr.Cell())
	if s.wb.renderer != nil {
		if err := s.wb.renderer.Render(addr, types.EmptyResult{}); err != nil {
			logging.RenderWarn("%s: clearing removed cell failed: %v", addr, err)
		}
	}

	var result *multierror.Error
	if s.wb.sources != nil {
		if err := s.wb.sources.Delete(addr); err != nil {
			logging.SessionWarn("%s: delete-through failed: %v", addr, err)
			result = multierror.Append(result, fmt.Errorf("persist %s: %w", addr, err))
		}
	}
	if err := s.engine.Removed(index); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// Load replaces the session's units with the persisted sources of its
// container and runs them all. Unreadable cells are skipped and reported.
func (s *Session) Load() error {
	if s.wb.sources == nil {
		return nil
	}
	addrs, err := s.wb.sources.List(s.container)
	if err != nil {
		return fmt.Errorf("list %s: %w", s.container, err)
	}

	var result *multierror.Error
	for _, addr := range addrs {
		text, err := s.wb.sources.Read(addr)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			result = multierror.Append(result, err)
			continue
		}
		if _, exists := s.units.IndexOf(addr); exists {
			_, err = s.units.Replace(addr, text)
		} else {
			_, err = s.units.Add(addr, text)
		}
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	logging.Session("Loaded %d units into %s", s.units.Len(), s.container)

	if err := s.engine.RunAll(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// RunAll rebuilds the container from a fresh namespace.
func (s *Session) RunAll() error {
	return s.engine.RunAll()
}
