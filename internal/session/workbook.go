// Package session binds containers to their namespace, source store and
// execution engine, and owns the workbook they live in.
package session

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"cellscript/internal/cache"
	"cellscript/internal/classify"
	"cellscript/internal/config"
	"cellscript/internal/engine"
	"cellscript/internal/helpers"
	"cellscript/internal/logging"
	"cellscript/internal/render"
	"cellscript/internal/script"
	"cellscript/internal/store"
	"cellscript/internal/syntax"
	"cellscript/internal/types"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

const defaultCacheSize = 4096

// Options wires a Workbook. Everything is optional except that a nil Host
// gets a default Starlark host.
type Options struct {
	Host     script.Host
	Parser   *syntax.Parser
	Renderer render.Renderer
	Sources  store.SourceStore
	Cache    cache.Service
	Plots    *helpers.PlotWriter
	Strategy engine.Strategy
}

// Workbook owns every container session plus the named ranges and the
// collaborators they share. Container creation and destruction are safe for
// concurrent use; calls into a single Session are not.
type Workbook struct {
	mu sync.RWMutex

	host       script.Host
	classifier *classify.Engine
	renderer   render.Renderer
	sources    store.SourceStore
	cache      cache.Service
	plots      *helpers.PlotWriter
	strategy   engine.Strategy

	sessions map[string]*Session
	names    map[string]string
}

// NewWorkbook creates an empty workbook.
func NewWorkbook(opts Options) (*Workbook, error) {
	if opts.Host == nil {
		opts.Host = script.NewStarlarkHost(script.Options{AllowRecursion: true})
	}
	if opts.Parser == nil {
		opts.Parser = syntax.NewParser()
	}
	if opts.Cache == nil {
		c, err := cache.NewLRU(defaultCacheSize)
		if err != nil {
			return nil, err
		}
		opts.Cache = c
	}
	if opts.Strategy == "" {
		opts.Strategy = engine.Conservative
	}
	logging.Session("Creating workbook (strategy: %s)", opts.Strategy)

	return &Workbook{
		host:       opts.Host,
		classifier: classify.New(opts.Host, opts.Parser),
		renderer:   opts.Renderer,
		sources:    opts.Sources,
		cache:      opts.Cache,
		plots:      opts.Plots,
		strategy:   opts.Strategy,
		sessions:   make(map[string]*Session),
		names:      make(map[string]string),
	}, nil
}

// NewFromConfig builds a workbook from configuration. Relative artifact
// directories are resolved against workspace.
func NewFromConfig(workspace string, cfg *config.Config, sources store.SourceStore, renderer render.Renderer) (*Workbook, error) {
	strategy, err := engine.ParseStrategy(cfg.Engine.Strategy)
	if err != nil {
		return nil, err
	}
	size := cfg.Cache.Size
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := cache.NewLRU(size)
	if err != nil {
		return nil, err
	}

	dir := cfg.Plot.ArtifactDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(workspace, dir)
	}

	return NewWorkbook(Options{
		Host: script.NewStarlarkHost(script.Options{
			MaxExecutionSteps: cfg.Engine.MaxExecutionSteps,
			AllowRecursion:    cfg.Engine.AllowRecursion,
		}),
		Renderer: renderer,
		Sources:  sources,
		Cache:    c,
		Plots:    helpers.NewPlotWriter(afero.NewOsFs(), dir, cfg.Plot.Width, cfg.Plot.Height),
		Strategy: strategy,
	})
}

// Container returns the session for id, bootstrapping it on first use.
func (w *Workbook) Container(id string) *Session {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s, ok := w.sessions[id]; ok {
		return s
	}
	s := newSession(w, id)
	w.sessions[id] = s
	logging.Session("Bootstrapped container %s", id)
	return s
}

// Lookup returns an existing session.
func (w *Workbook) Lookup(id string) (*Session, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.sessions[id]
	return s, ok
}

// Containers returns the container ids, sorted.
func (w *Workbook) Containers() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.sessions))
	for id := range w.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Destroy discards a container's namespace, units and cached results.
// Persisted sources are left alone.
func (w *Workbook) Destroy(id string) {
	w.mu.Lock()
	_, ok := w.sessions[id]
	delete(w.sessions, id)
	w.mu.Unlock()

	if ok {
		w.cache.InvalidateScope(id)
		logging.Session("Destroyed container %s", id)
	}
}

// DefineName binds a workbook-level name to a range reference. The name is
// written through when the source store keeps names.
func (w *Workbook) DefineName(name, ref string) error {
	if _, err := types.ParseRange(ref, ""); err != nil {
		return fmt.Errorf("define %s: %w", name, err)
	}
	if _, err := types.ParseRange(name, ""); err == nil {
		return fmt.Errorf("define %s: name looks like a cell reference", name)
	}

	w.mu.Lock()
	w.names[name] = ref
	w.mu.Unlock()

	if ns, ok := w.sources.(store.NameStore); ok {
		if err := ns.DefineName(name, ref); err != nil {
			return err
		}
	}
	logging.SessionDebug("Defined name %s = %s", name, ref)
	return nil
}

// RemoveName drops a named range. Later lookups of it fail as unknown.
func (w *Workbook) RemoveName(name string) error {
	w.mu.Lock()
	delete(w.names, name)
	w.mu.Unlock()

	if ns, ok := w.sources.(store.NameStore); ok {
		return ns.RemoveName(name)
	}
	return nil
}

// Names returns a copy of the named ranges.
func (w *Workbook) Names() map[string]string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]string, len(w.names))
	for k, v := range w.names {
		out[k] = v
	}
	return out
}

// Load materializes every persisted container and name, then runs each
// container in id order. Per-cell failures are collected rather than
// stopping the load.
func (w *Workbook) Load() error {
	if w.sources == nil {
		return nil
	}
	timer := logging.StartTimer(logging.CategorySession, "Workbook.Load")
	defer timer.Stop()

	var result *multierror.Error

	if ns, ok := w.sources.(store.NameStore); ok {
		names, err := ns.Names()
		if err != nil {
			result = multierror.Append(result, err)
		}
		w.mu.Lock()
		for k, v := range names {
			w.names[k] = v
		}
		w.mu.Unlock()
	}

	ids, err := w.sources.Containers()
	if err != nil {
		return multierror.Append(result, err)
	}
	for _, id := range ids {
		if err := w.Container(id).Load(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// RunAll rebuilds every container in id order, starting from an empty
// lookup cache.
func (w *Workbook) RunAll() error {
	w.cache.Purge()

	var result *multierror.Error
	for _, id := range w.Containers() {
		s, ok := w.Lookup(id)
		if !ok {
			continue
		}
		if err := s.RunAll(); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", id, err))
		}
	}
	return result.ErrorOrNil()
}

// CacheStats reports lookup cache usage.
func (w *Workbook) CacheStats() cache.Stats { return w.cache.Stats() }

// Close releases the source store.
func (w *Workbook) Close() error {
	if w.sources == nil {
		return nil
	}
	return w.sources.Close()
}

// observe keeps the lookup cache in step with delivered results.
func (w *Workbook) observe(addr types.Address, _ types.Result) {
	w.cache.Invalidate(addr.Container, addr.Cell())
}
