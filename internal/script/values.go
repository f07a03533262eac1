package script

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// =============================================================================
// SERIES
// =============================================================================

// Series is a one-dimensional, optionally labeled sequence.
type Series struct {
	values  starlark.Tuple
	name    string
	hasName bool
}

var (
	_ starlark.Indexable = (*Series)(nil)
	_ starlark.Iterable  = (*Series)(nil)
	_ starlark.HasAttrs  = (*Series)(nil)
)

// NewSeries builds a series. An empty name means unlabeled.
func NewSeries(values []starlark.Value, name string) *Series {
	return &Series{values: starlark.Tuple(values), name: name, hasName: name != ""}
}

// Values returns the series elements.
func (s *Series) Values() []starlark.Value { return s.values }

// Name returns the label and whether one is set.
func (s *Series) Name() (string, bool) { return s.name, s.hasName }

func (s *Series) String() string {
	if s.hasName {
		return fmt.Sprintf("series(%s, name=%q)", s.values.String(), s.name)
	}
	return fmt.Sprintf("series(%s)", s.values.String())
}

func (s *Series) Type() string          { return "series" }
func (s *Series) Freeze()               { s.values.Freeze() }
func (s *Series) Truth() starlark.Bool  { return len(s.values) > 0 }
func (s *Series) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: series") }
func (s *Series) Len() int              { return len(s.values) }
func (s *Series) Index(i int) starlark.Value {
	return s.values[i]
}
func (s *Series) Iterate() starlark.Iterator { return s.values.Iterate() }

func (s *Series) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		if !s.hasName {
			return starlark.None, nil
		}
		return starlark.String(s.name), nil
	case "values":
		return s.values, nil
	}
	return nil, nil
}

func (s *Series) AttrNames() []string { return []string{"name", "values"} }

// =============================================================================
// FRAME
// =============================================================================

// Frame is a columnar table with row and column counts. When hasHeaders is
// set the column names are rendered as the first row.
type Frame struct {
	headers    []string
	rows       []starlark.Tuple
	hasHeaders bool
	frozen     bool
}

var (
	_ starlark.Indexable = (*Frame)(nil)
	_ starlark.Iterable  = (*Frame)(nil)
	_ starlark.HasAttrs  = (*Frame)(nil)
)

// NewFrame builds a frame. Every row must have len(headers) cells when
// headers are given.
func NewFrame(headers []string, rows [][]starlark.Value, hasHeaders bool) (*Frame, error) {
	width := len(headers)
	f := &Frame{headers: headers, hasHeaders: hasHeaders}
	for i, row := range rows {
		if width == 0 && i == 0 {
			width = len(row)
		}
		if len(row) != width {
			return nil, fmt.Errorf("frame row %d has %d cells, want %d", i, len(row), width)
		}
		f.rows = append(f.rows, starlark.Tuple(row))
	}
	return f, nil
}

// Headers returns the column names (empty when the frame has none).
func (f *Frame) Headers() []string { return f.headers }

// HasHeaders reports whether the first rendered row is a header row.
func (f *Frame) HasHeaders() bool { return f.hasHeaders }

// Rows returns the data rows.
func (f *Frame) Rows() [][]starlark.Value {
	out := make([][]starlark.Value, len(f.rows))
	for i, r := range f.rows {
		out[i] = r
	}
	return out
}

// Shape returns the (rows, columns) counts.
func (f *Frame) Shape() (int, int) {
	cols := len(f.headers)
	if cols == 0 && len(f.rows) > 0 {
		cols = len(f.rows[0])
	}
	return len(f.rows), cols
}

func (f *Frame) String() string {
	rows, cols := f.Shape()
	if f.hasHeaders {
		return fmt.Sprintf("frame(%dx%d, headers=[%s])", rows, cols, strings.Join(f.headers, ", "))
	}
	return fmt.Sprintf("frame(%dx%d)", rows, cols)
}

func (f *Frame) Type() string          { return "frame" }
func (f *Frame) Truth() starlark.Bool  { return len(f.rows) > 0 }
func (f *Frame) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: frame") }
func (f *Frame) Len() int              { return len(f.rows) }
func (f *Frame) Index(i int) starlark.Value {
	return f.rows[i]
}

func (f *Frame) Iterate() starlark.Iterator {
	t := make(starlark.Tuple, len(f.rows))
	for i, r := range f.rows {
		t[i] = r
	}
	return t.Iterate()
}

func (f *Frame) Freeze() {
	if f.frozen {
		return
	}
	f.frozen = true
	for _, r := range f.rows {
		r.Freeze()
	}
}

func (f *Frame) Attr(name string) (starlark.Value, error) {
	rows, cols := f.Shape()
	switch name {
	case "rows":
		return starlark.MakeInt(rows), nil
	case "cols":
		return starlark.MakeInt(cols), nil
	case "shape":
		return starlark.Tuple{starlark.MakeInt(rows), starlark.MakeInt(cols)}, nil
	case "headers":
		hs := make([]starlark.Value, len(f.headers))
		for i, h := range f.headers {
			hs[i] = starlark.String(h)
		}
		return starlark.Tuple(hs), nil
	}
	return nil, nil
}

func (f *Frame) AttrNames() []string { return []string{"cols", "headers", "rows", "shape"} }

// =============================================================================
// CELL ERROR
// =============================================================================

// CellError is a domain error value that a fragment produced or caught.
type CellError struct {
	err error
}

var _ starlark.HasAttrs = (*CellError)(nil)

// NewCellError wraps err as a Starlark value.
func NewCellError(err error) *CellError { return &CellError{err: err} }

// Err returns the wrapped error.
func (e *CellError) Err() error { return e.err }

func (e *CellError) String() string        { return fmt.Sprintf("error(%q)", e.err.Error()) }
func (e *CellError) Type() string          { return "error" }
func (e *CellError) Freeze()               {}
func (e *CellError) Truth() starlark.Bool  { return false }
func (e *CellError) Hash() (uint32, error) { return starlark.String(e.err.Error()).Hash() }

func (e *CellError) Attr(name string) (starlark.Value, error) {
	if name == "message" {
		return starlark.String(e.err.Error()), nil
	}
	return nil, nil
}

func (e *CellError) AttrNames() []string { return []string{"message"} }
