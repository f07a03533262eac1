package script

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"
)

var errUnknown = errors.New("unknown error")

// Constructors returns the value-constructor builtins every namespace is
// seeded with.
func Constructors() starlark.StringDict {
	return starlark.StringDict{
		"series": starlark.NewBuiltin("series", seriesBuiltin),
		"frame":  starlark.NewBuiltin("frame", frameBuiltin),
		"error":  starlark.NewBuiltin("error", errorBuiltin),
	}
}

// series(values, name=None)
func seriesBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var values starlark.Iterable
	var name starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "values", &values, "name?", &name); err != nil {
		return nil, err
	}

	label := ""
	if name != starlark.None {
		s, ok := starlark.AsString(name)
		if !ok {
			return nil, fmt.Errorf("%s: name must be a string, got %s", b.Name(), name.Type())
		}
		label = s
	}
	return NewSeries(collect(values), label), nil
}

// frame(rows, headers=True)
//
// rows is either a list of row sequences or a dict of equal-length columns.
// headers=True takes the first row as column names, headers=False keeps
// every row as data, and a list of strings names the columns explicitly.
func frameBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value
	var headers starlark.Value = starlark.True
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "rows", &data, "headers?", &headers); err != nil {
		return nil, err
	}

	if d, ok := data.(*starlark.Dict); ok {
		return frameValue(FrameFromColumns(d))
	}

	iter, ok := data.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("%s: rows must be a list or dict, got %s", b.Name(), data.Type())
	}
	var rows [][]starlark.Value
	for _, r := range collect(iter) {
		ri, ok := r.(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("%s: row must be a sequence, got %s", b.Name(), r.Type())
		}
		rows = append(rows, collect(ri))
	}

	switch h := headers.(type) {
	case starlark.Bool:
		if !h || len(rows) == 0 {
			return frameValue(NewFrame(nil, rows, false))
		}
		names := make([]string, len(rows[0]))
		for i, v := range rows[0] {
			names[i] = display(v)
		}
		return frameValue(NewFrame(names, rows[1:], true))
	case starlark.NoneType:
		return frameValue(NewFrame(nil, rows, false))
	case starlark.Iterable:
		var names []string
		for _, v := range collect(h) {
			names = append(names, display(v))
		}
		return frameValue(NewFrame(names, rows, true))
	default:
		return nil, fmt.Errorf("%s: headers must be a bool or list, got %s", b.Name(), headers.Type())
	}
}

// FrameFromColumns builds a frame from a dict of equal-length columns.
func FrameFromColumns(d *starlark.Dict) (*Frame, error) {
	var headers []string
	var columns [][]starlark.Value
	for _, item := range d.Items() {
		col, ok := item[1].(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("column %s must be a sequence, got %s", item[0], item[1].Type())
		}
		headers = append(headers, display(item[0]))
		columns = append(columns, collect(col))
	}

	height := 0
	if len(columns) > 0 {
		height = len(columns[0])
	}
	rows := make([][]starlark.Value, height)
	for i := range rows {
		rows[i] = make([]starlark.Value, len(columns))
	}
	for j, col := range columns {
		if len(col) != height {
			return nil, fmt.Errorf("column %s has %d values, want %d", headers[j], len(col), height)
		}
		for i, v := range col {
			rows[i][j] = v
		}
	}
	return NewFrame(headers, rows, true)
}

func frameValue(f *Frame, err error) (starlark.Value, error) {
	if err != nil {
		return nil, err
	}
	return f, nil
}

// error(msg)
func errorBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}
	return NewCellError(errors.New(msg)), nil
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

func display(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return s
	}
	return v.String()
}
