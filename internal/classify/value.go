package classify

import (
	"errors"

	"cellscript/internal/script"
	"cellscript/internal/types"

	"go.starlark.net/starlark"
)

// Value maps a runtime value onto a Result by shape. Callables do not
// match, so the rule chain moves on.
func Value(v starlark.Value) (types.Result, bool) {
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return types.EmptyResult{}, true

	case *script.CellError:
		return types.ErrorResult{Cause: x.Err()}, true

	case *script.Series:
		name, hasName := x.Name()
		return types.SeriesResult{Values: goValues(x.Values()), Name: name, HasName: hasName}, true

	case *script.Frame:
		return frameResult(x), true

	case *starlark.Dict:
		if f, err := script.FrameFromColumns(x); err == nil && x.Len() > 0 {
			return frameResult(f), true
		}
		return types.ScalarResult{Value: x.String()}, true

	case *starlark.List, starlark.Tuple:
		elems := sequence(v)
		if rows, ok := table(elems); ok {
			return types.TableResult{Rows: rows}, true
		}
		return types.SeriesResult{Values: goValues(elems)}, true

	case starlark.String, starlark.Bool, starlark.Int, starlark.Float:
		return types.ScalarResult{Value: script.ToGo(x)}, true

	case starlark.Callable:
		return nil, false

	default:
		return types.ScalarResult{Value: v.String()}, true
	}
}

// table reports whether elems is a non-empty sequence of sequences that all
// share one non-zero length.
func table(elems []starlark.Value) ([][]interface{}, bool) {
	if len(elems) == 0 {
		return nil, false
	}
	width := -1
	rows := make([][]interface{}, 0, len(elems))
	for _, e := range elems {
		switch e.(type) {
		case *starlark.List, starlark.Tuple:
		default:
			return nil, false
		}
		row := sequence(e)
		if width == -1 {
			width = len(row)
		}
		if len(row) == 0 || len(row) != width {
			return nil, false
		}
		rows = append(rows, goValues(row))
	}
	return rows, true
}

func sequence(v starlark.Value) []starlark.Value {
	switch x := v.(type) {
	case starlark.Tuple:
		return x
	case *starlark.List:
		out := make([]starlark.Value, x.Len())
		for i := range out {
			out[i] = x.Index(i)
		}
		return out
	}
	return nil
}

func goValues(vs []starlark.Value) []interface{} {
	out := make([]interface{}, len(vs))
	for i, v := range vs {
		out[i] = script.ToGo(v)
	}
	return out
}

func frameResult(f *script.Frame) types.DataFrameResult {
	rows := f.Rows()
	out := types.DataFrameResult{
		Headers:    f.Headers(),
		Rows:       make([][]interface{}, len(rows)),
		HasHeaders: f.HasHeaders(),
	}
	for i, row := range rows {
		out.Rows[i] = goValues(row)
	}
	return out
}

var (
	errNoArtifact = errors.New("plot produced no artifact")
	errNoLookup   = errors.New("lookup produced no value")
)
