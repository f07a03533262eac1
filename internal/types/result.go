package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// CLASSIFICATION RESULTS
// =============================================================================

// Kind tags the variant carried by a Result.
type Kind int

const (
	KindEmpty Kind = iota
	KindScalar
	KindTable
	KindSeries
	KindDataFrame
	KindPlot
	KindError
)

var kindNames = map[Kind]string{
	KindEmpty:     "empty",
	KindScalar:    "scalar",
	KindTable:     "table",
	KindSeries:    "series",
	KindDataFrame: "dataframe",
	KindPlot:      "plot",
	KindError:     "error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Result is what one cell's script produced after classification.
// Values carried inside results are nil, bool, int64, *big.Int, float64,
// string, or nested []interface{}.
type Result interface {
	Kind() Kind
	String() string
}

// EmptyResult is produced by blank fragments and None values.
type EmptyResult struct{}

// ScalarResult holds a single text, boolean, integer or float value.
type ScalarResult struct {
	Value interface{}
}

// TableResult is a rectangular sequence of rows.
type TableResult struct {
	Rows [][]interface{}
}

// SeriesResult is a one-dimensional sequence, optionally labeled.
type SeriesResult struct {
	Values  []interface{}
	Name    string
	HasName bool
}

// DataFrameResult is a columnar object with row and column counts.
// When HasHeaders is set, Headers names the columns and the first rendered row
// is the header row.
type DataFrameResult struct {
	Headers    []string
	Rows       [][]interface{}
	HasHeaders bool
}

// PlotResult points at a rendered plot artifact.
type PlotResult struct {
	Path string
}

// ErrorResult carries an execution failure or a domain error value.
type ErrorResult struct {
	Cause error
}

func (EmptyResult) Kind() Kind     { return KindEmpty }
func (ScalarResult) Kind() Kind    { return KindScalar }
func (TableResult) Kind() Kind     { return KindTable }
func (SeriesResult) Kind() Kind    { return KindSeries }
func (DataFrameResult) Kind() Kind { return KindDataFrame }
func (PlotResult) Kind() Kind      { return KindPlot }
func (ErrorResult) Kind() Kind     { return KindError }

func (EmptyResult) String() string { return "" }

func (r ScalarResult) String() string { return FormatValue(r.Value) }

func (r TableResult) String() string {
	lines := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		lines = append(lines, formatRow(row))
	}
	return strings.Join(lines, "\n")
}

func (r SeriesResult) String() string {
	if r.HasName {
		return r.Name + ": " + formatRow(r.Values)
	}
	return formatRow(r.Values)
}

func (r DataFrameResult) String() string {
	var lines []string
	if r.HasHeaders {
		lines = append(lines, strings.Join(r.Headers, "\t"))
	}
	for _, row := range r.Rows {
		lines = append(lines, formatRow(row))
	}
	return strings.Join(lines, "\n")
}

func (r PlotResult) String() string { return r.Path }

func (r ErrorResult) String() string {
	if r.Cause == nil {
		return "#ERROR"
	}
	return "#ERROR " + r.Cause.Error()
}

// Equal compares error results by message; used by go-cmp.
func (r ErrorResult) Equal(o ErrorResult) bool {
	if r.Cause == nil || o.Cause == nil {
		return r.Cause == nil && o.Cause == nil
	}
	return r.Cause.Error() == o.Cause.Error()
}

// Dims returns the (rows, columns) shape of a data frame.
func (r DataFrameResult) Dims() (int, int) {
	cols := len(r.Headers)
	if cols == 0 && len(r.Rows) > 0 {
		cols = len(r.Rows[0])
	}
	return len(r.Rows), cols
}

func formatRow(row []interface{}) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = FormatValue(v)
	}
	return strings.Join(parts, "\t")
}

// FormatValue renders a result value for display.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case float64:
		return fmt.Sprintf("%g", x)
	case []interface{}:
		return "[" + strings.ReplaceAll(formatRow(x), "\t", ", ") + "]"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// =============================================================================
// JSON FORM
// =============================================================================

type resultJSON struct {
	Kind       string          `json:"kind"`
	Value      interface{}     `json:"value,omitempty"`
	Rows       [][]interface{} `json:"rows,omitempty"`
	Values     []interface{}   `json:"values,omitempty"`
	Name       string          `json:"name,omitempty"`
	Headers    []string        `json:"headers,omitempty"`
	HasHeaders bool            `json:"has_headers,omitempty"`
	Path       string          `json:"path,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// MarshalResult encodes a result as a tagged JSON object.
func MarshalResult(r Result) ([]byte, error) {
	out := resultJSON{Kind: r.Kind().String()}
	switch x := r.(type) {
	case ScalarResult:
		out.Value = jsonSafe(x.Value)
	case TableResult:
		out.Rows = jsonRows(x.Rows)
	case SeriesResult:
		out.Values = jsonRow(x.Values)
		if x.HasName {
			out.Name = x.Name
		}
	case DataFrameResult:
		out.Headers = x.Headers
		out.HasHeaders = x.HasHeaders
		out.Rows = jsonRows(x.Rows)
	case PlotResult:
		out.Path = x.Path
	case ErrorResult:
		out.Error = x.String()
	}
	return json.Marshal(out)
}

func jsonRows(rows [][]interface{}) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		out[i] = jsonRow(row)
	}
	return out
}

func jsonRow(row []interface{}) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = jsonSafe(v)
	}
	return out
}

// jsonSafe keeps big integers exact by encoding them as strings.
func jsonSafe(v interface{}) interface{} {
	switch x := v.(type) {
	case []interface{}:
		return jsonRow(x)
	case fmt.Stringer:
		return x.String()
	default:
		return v
	}
}
