package script

import (
	"math/big"
	"sort"

	"cellscript/internal/types"

	"go.starlark.net/starlark"
)

// ToGo converts a Starlark value into the plain Go form carried by results:
// nil, bool, int64, *big.Int, float64, string or []interface{}.
// Values with no plain form become their repr.
func ToGo(v starlark.Value) interface{} {
	switch x := v.(type) {
	case nil, starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i
		}
		return x.BigInt()
	case starlark.Float:
		return float64(x)
	case starlark.String:
		return string(x)
	case *starlark.List:
		out := make([]interface{}, x.Len())
		for i := 0; i < x.Len(); i++ {
			out[i] = ToGo(x.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = ToGo(e)
		}
		return out
	case *Series:
		return ToGo(x.values)
	case *CellError:
		return "#ERROR " + x.err.Error()
	default:
		return v.String()
	}
}

// FromGo is the inverse of ToGo for plain Go values.
func FromGo(v interface{}) starlark.Value {
	switch x := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(x)
	case int:
		return starlark.MakeInt(x)
	case int64:
		return starlark.MakeInt64(x)
	case *big.Int:
		return starlark.MakeBigInt(x)
	case float64:
		return starlark.Float(x)
	case string:
		return starlark.String(x)
	case []interface{}:
		elems := make([]starlark.Value, len(x))
		for i, e := range x {
			elems[i] = FromGo(e)
		}
		return starlark.NewList(elems)
	case map[string]interface{}:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(x))
		for _, k := range keys {
			_ = d.SetKey(starlark.String(k), FromGo(x[k]))
		}
		return d
	default:
		return starlark.None
	}
}

// ValueOfResult turns a cell's classified result back into a value that a
// fragment can compute with.
func ValueOfResult(r types.Result) starlark.Value {
	switch x := r.(type) {
	case nil, types.EmptyResult:
		return starlark.None
	case types.ScalarResult:
		return FromGo(x.Value)
	case types.TableResult:
		rows := make([]starlark.Value, len(x.Rows))
		for i, row := range x.Rows {
			rows[i] = FromGo(row)
		}
		return starlark.NewList(rows)
	case types.SeriesResult:
		elems := make([]starlark.Value, len(x.Values))
		for i, e := range x.Values {
			elems[i] = FromGo(e)
		}
		name := ""
		if x.HasName {
			name = x.Name
		}
		return NewSeries(elems, name)
	case types.DataFrameResult:
		rows := make([][]starlark.Value, len(x.Rows))
		for i, row := range x.Rows {
			rows[i] = make([]starlark.Value, len(row))
			for j, e := range row {
				rows[i][j] = FromGo(e)
			}
		}
		f, err := NewFrame(x.Headers, rows, x.HasHeaders)
		if err != nil {
			return NewCellError(err)
		}
		return f
	case types.PlotResult:
		return starlark.String(x.Path)
	case types.ErrorResult:
		if x.Cause == nil {
			return NewCellError(errUnknown)
		}
		return NewCellError(x.Cause)
	default:
		return starlark.String(r.String())
	}
}
