package types

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnNameRoundTrip(t *testing.T) {
	tests := []struct {
		col  int
		name string
	}{
		{0, "A"},
		{1, "B"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{701, "ZZ"},
		{702, "AAA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, ColumnName(tt.col))
			got, err := ColumnIndex(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.col, got)
		})
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		ref     string
		want    Address
		wantErr bool
	}{
		{"A1", At("Sheet1", 0, 0), false},
		{"b3", At("Sheet1", 2, 1), false},
		{"$C$10", At("Sheet1", 9, 2), false},
		{"Data!AA2", At("Data", 1, 26), false},
		{"'My Sheet'!A1", At("My Sheet", 0, 0), false},
		{"A0", Address{}, true},
		{"12", Address{}, true},
		{"A", Address{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := ParseAddress(tt.ref, "Sheet1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddressOrdering(t *testing.T) {
	addrs := []Address{
		At("S", 1, 0),
		At("S", 0, 2),
		At("R", 5, 5),
		At("S", 0, 0),
		At("S", 1, 1),
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })

	want := []Address{
		At("R", 5, 5),
		At("S", 0, 0),
		At("S", 0, 2),
		At("S", 1, 0),
		At("S", 1, 1),
	}
	assert.Equal(t, want, addrs)
	assert.Equal(t, 0, At("S", 3, 3).Compare(At("S", 3, 3)))
	assert.Equal(t, "S!D4", At("S", 3, 3).String())
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("Sheet2!C3:A1", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, At("Sheet2", 0, 0), r.Start)
	assert.Equal(t, At("Sheet2", 2, 2), r.End)
	assert.False(t, r.Single())

	rows := r.Rows()
	require.Len(t, rows, 3)
	require.Len(t, rows[0], 3)
	assert.Equal(t, At("Sheet2", 1, 2), rows[1][2])
	assert.Equal(t, "Sheet2!A1:C3", r.String())

	single, err := ParseRange("B2", "Sheet1")
	require.NoError(t, err)
	assert.True(t, single.Single())

	_, err = ParseRange("A1:B2:C3", "Sheet1")
	assert.Error(t, err)
}

func TestErrorTaxonomy(t *testing.T) {
	var err error = &SourceConflictError{Op: "add", Address: At("S", 0, 0), Reason: "address already present"}
	assert.True(t, errors.Is(err, ErrSourceConflict))
	assert.False(t, errors.Is(err, ErrConsistencyViolation))

	err = &ConsistencyViolation{Index: 1, Prev: At("S", 2, 0), Next: At("S", 1, 0)}
	assert.True(t, errors.Is(err, ErrConsistencyViolation))

	cause := errors.New("boom")
	err = &ExecutionFailure{Address: At("S", 0, 0), Err: cause}
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "S!A1: boom", err.Error())
}
