package types

import (
	"errors"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultKinds(t *testing.T) {
	tests := []struct {
		result Result
		kind   Kind
		text   string
	}{
		{EmptyResult{}, KindEmpty, ""},
		{ScalarResult{Value: int64(5)}, KindScalar, "5"},
		{ScalarResult{Value: true}, KindScalar, "TRUE"},
		{ScalarResult{Value: 2.5}, KindScalar, "2.5"},
		{TableResult{Rows: [][]interface{}{{int64(1), int64(2)}, {int64(3), int64(4)}}}, KindTable, "1\t2\n3\t4"},
		{SeriesResult{Values: []interface{}{"a", "b"}, Name: "letters", HasName: true}, KindSeries, "letters: a\tb"},
		{DataFrameResult{Headers: []string{"x", "y"}, Rows: [][]interface{}{{int64(1), int64(2)}}, HasHeaders: true}, KindDataFrame, "x\ty\n1\t2"},
		{PlotResult{Path: "/tmp/a.svg"}, KindPlot, "/tmp/a.svg"},
		{ErrorResult{Cause: errors.New("bad")}, KindError, "#ERROR bad"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.result.Kind())
			assert.Equal(t, tt.text, tt.result.String())
		})
	}
}

func TestErrorResultEqual(t *testing.T) {
	a := ErrorResult{Cause: errors.New("same")}
	b := ErrorResult{Cause: errors.New("same")}
	c := ErrorResult{Cause: errors.New("other")}

	if diff := cmp.Diff(Result(a), Result(b)); diff != "" {
		t.Errorf("equal messages should compare equal (-a +b):\n%s", diff)
	}
	assert.False(t, a.Equal(c))
	assert.True(t, ErrorResult{}.Equal(ErrorResult{}))
}

func TestMarshalResult(t *testing.T) {
	data, err := MarshalResult(ScalarResult{Value: int64(5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"scalar","value":5}`, string(data))

	n := new(big.Int).Lsh(big.NewInt(1), 80)
	data, err = MarshalResult(SeriesResult{Values: []interface{}{n}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"series","values":["1208925819614629174706176"]}`, string(data))

	data, err = MarshalResult(DataFrameResult{Headers: []string{"a"}, Rows: [][]interface{}{{"x"}}, HasHeaders: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"dataframe","headers":["a"],"has_headers":true,"rows":[["x"]]}`, string(data))

	data, err = MarshalResult(EmptyResult{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"empty"}`, string(data))
}

func TestDataFrameDims(t *testing.T) {
	df := DataFrameResult{Rows: [][]interface{}{{1, 2, 3}, {4, 5, 6}}}
	rows, cols := df.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
}
