package helpers

import (
	"fmt"
	"path/filepath"

	"cellscript/internal/logging"
	"cellscript/internal/namespace"
	"cellscript/internal/script"
	"cellscript/internal/types"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.starlark.net/starlark"
)

// artifactSpace scopes the content-derived artifact names.
var artifactSpace = uuid.MustParse("6f1c54f6-9b7e-4c55-a8f0-2d0c4b0e7a31")

// PlotWriter stores plot artifacts on a filesystem.
type PlotWriter struct {
	fs     afero.Fs
	dir    string
	width  int
	height int
}

// NewPlotWriter writes width x height SVGs under dir on fs.
func NewPlotWriter(fs afero.Fs, dir string, width, height int) *PlotWriter {
	return &PlotWriter{fs: fs, dir: dir, width: width, height: height}
}

// Write renders c and stores it. An empty path derives a stable name from
// the cell address and the rendered bytes, so identical rebuilds produce
// identical paths.
func (p *PlotWriter) Write(at types.Address, c Chart, path string) (string, error) {
	svg := RenderSVG(c, p.width, p.height)

	if path == "" {
		name := uuid.NewSHA1(artifactSpace, append([]byte(at.String()+"\x00"), svg...))
		path = filepath.Join(p.dir, name.String()+".svg")
	}
	if err := p.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create plot directory: %w", err)
	}
	if err := afero.WriteFile(p.fs, path, svg, 0644); err != nil {
		return "", fmt.Errorf("failed to write plot: %w", err)
	}
	logging.ScriptDebug("%s: wrote plot %s (%d bytes)", at, path, len(svg))
	return path, nil
}

// plot(data, kind="line", title="", path=None)
func plotBuiltin(ns *namespace.Namespace, writer *PlotWriter) *starlark.Builtin {
	return starlark.NewBuiltin(namespace.PlotHelper, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var data starlark.Value
		kind, title := "line", ""
		var path starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "data", &data, "kind?", &kind, "title?", &title, "path?", &path); err != nil {
			return nil, err
		}
		if kind != "line" && kind != "bar" {
			return nil, fmt.Errorf("%s: unknown kind %q (want line or bar)", b.Name(), kind)
		}

		series, err := chartSeries(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}

		// Classification re-evaluates expressions; only real runs draw.
		if script.Evaluating(thread) {
			return starlark.None, nil
		}
		if writer == nil {
			return nil, fmt.Errorf("%s: plotting is not configured", b.Name())
		}

		at, _ := script.CurrentAddress(thread)
		target := ""
		if path != starlark.None {
			s, ok := starlark.AsString(path)
			if !ok {
				return nil, fmt.Errorf("%s: path must be a string, got %s", b.Name(), path.Type())
			}
			target = s
		}

		written, err := writer.Write(at, Chart{Kind: kind, Title: title, Series: series}, target)
		if err != nil {
			return nil, err
		}
		ns.Set(namespace.PlotBinding, starlark.String(written))
		return starlark.String(written), nil
	})
}

// chartSeries accepts a flat sequence, a sequence of sequences, a series or
// a frame (one series per column).
func chartSeries(data starlark.Value) ([]ChartSeries, error) {
	switch x := data.(type) {
	case *script.Series:
		name, _ := x.Name()
		values, err := floats(x.Values())
		if err != nil {
			return nil, err
		}
		return []ChartSeries{{Name: name, Values: values}}, nil

	case *script.Frame:
		rows := x.Rows()
		_, cols := x.Shape()
		out := make([]ChartSeries, cols)
		for j := 0; j < cols; j++ {
			if j < len(x.Headers()) {
				out[j].Name = x.Headers()[j]
			}
			for _, row := range rows {
				f, ok := starlark.AsFloat(row[j])
				if !ok {
					return nil, fmt.Errorf("column %d holds %s, want number", j, row[j].Type())
				}
				out[j].Values = append(out[j].Values, f)
			}
		}
		return out, nil
	}

	iter, ok := data.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("cannot plot %s", data.Type())
	}
	elems := collect(iter)
	if len(elems) > 0 {
		if _, nested := elems[0].(starlark.Iterable); nested {
			out := make([]ChartSeries, 0, len(elems))
			for i, e := range elems {
				inner, ok := e.(starlark.Iterable)
				if !ok {
					return nil, fmt.Errorf("row %d is %s, want sequence", i, e.Type())
				}
				values, err := floats(collect(inner))
				if err != nil {
					return nil, err
				}
				out = append(out, ChartSeries{Name: fmt.Sprintf("series %d", i+1), Values: values})
			}
			return out, nil
		}
	}
	values, err := floats(elems)
	if err != nil {
		return nil, err
	}
	return []ChartSeries{{Values: values}}, nil
}

func floats(vs []starlark.Value) ([]float64, error) {
	out := make([]float64, len(vs))
	for i, v := range vs {
		f, ok := starlark.AsFloat(v)
		if !ok {
			return nil, fmt.Errorf("value %d is %s, want number", i, v.Type())
		}
		out[i] = f
	}
	return out, nil
}

func collect(it starlark.Iterable) []starlark.Value {
	iter := it.Iterate()
	defer iter.Done()
	var out []starlark.Value
	var v starlark.Value
	for iter.Next(&v) {
		out = append(out, v)
	}
	return out
}
