// Package types provides shared type definitions used across cellscript packages.
// This package exists to break import cycles between source, engine, classify and session.
// Types in this package should be foundational data structures with no complex dependencies.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ADDRESSING
// =============================================================================

// Address identifies one cell: the owning container (sheet) plus a zero-based
// row and column. Two addresses are equal iff all three components match.
type Address struct {
	Container string
	Row       int
	Col       int
}

// At builds an address in the given container.
func At(container string, row, col int) Address {
	return Address{Container: container, Row: row, Col: col}
}

// Compare orders addresses by (container, row, column).
// Returns -1, 0 or +1.
func (a Address) Compare(b Address) int {
	switch {
	case a.Container < b.Container:
		return -1
	case a.Container > b.Container:
		return 1
	case a.Row < b.Row:
		return -1
	case a.Row > b.Row:
		return 1
	case a.Col < b.Col:
		return -1
	case a.Col > b.Col:
		return 1
	}
	return 0
}

// Less reports whether a sorts before b.
func (a Address) Less(b Address) bool {
	return a.Compare(b) < 0
}

// Valid reports whether row and column are non-negative.
func (a Address) Valid() bool {
	return a.Row >= 0 && a.Col >= 0
}

// Cell returns the A1 form without the container ("B3").
func (a Address) Cell() string {
	return ColumnName(a.Col) + strconv.Itoa(a.Row+1)
}

// String returns the qualified A1 form ("Sheet1!B3").
func (a Address) String() string {
	if a.Container == "" {
		return a.Cell()
	}
	return a.Container + "!" + a.Cell()
}

// ColumnName converts a zero-based column index to letters (0 -> A, 26 -> AA).
func ColumnName(col int) string {
	if col < 0 {
		return "?"
	}
	var buf []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return string(buf)
}

// ColumnIndex converts column letters to a zero-based index (A -> 0, AA -> 26).
func ColumnIndex(letters string) (int, error) {
	if letters == "" {
		return 0, fmt.Errorf("empty column")
	}
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column %q", letters)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, nil
}

// ParseAddress parses "B3" or "Sheet1!B3". A bare cell reference is resolved
// in defaultContainer.
func ParseAddress(ref, defaultContainer string) (Address, error) {
	container, cell := splitContainer(ref, defaultContainer)
	row, col, err := parseCell(cell)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", ref, err)
	}
	return Address{Container: container, Row: row, Col: col}, nil
}

// MustParseAddress is ParseAddress for literals known to be valid.
func MustParseAddress(ref, defaultContainer string) Address {
	a, err := ParseAddress(ref, defaultContainer)
	if err != nil {
		panic(err)
	}
	return a
}

func splitContainer(ref, defaultContainer string) (string, string) {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndex(ref, "!"); i >= 0 {
		return strings.Trim(ref[:i], "'"), ref[i+1:]
	}
	return defaultContainer, ref
}

func parseCell(cell string) (int, int, error) {
	cell = strings.ReplaceAll(strings.TrimSpace(cell), "$", "")
	i := 0
	for i < len(cell) && isLetter(cell[i]) {
		i++
	}
	if i == 0 || i == len(cell) {
		return 0, 0, fmt.Errorf("expected column letters followed by a row number")
	}
	col, err := ColumnIndex(cell[:i])
	if err != nil {
		return 0, 0, err
	}
	row, err := strconv.Atoi(cell[i:])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("invalid row %q", cell[i:])
	}
	return row - 1, col, nil
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// =============================================================================
// RANGES
// =============================================================================

// Range is a rectangular block of cells inside one container, inclusive on
// both corners.
type Range struct {
	Start Address
	End   Address
}

// ParseRange parses "A1:C4", "Sheet1!A1:C4" or a single cell ("B2").
func ParseRange(ref, defaultContainer string) (Range, error) {
	container, body := splitContainer(ref, defaultContainer)
	parts := strings.Split(body, ":")
	if len(parts) > 2 {
		return Range{}, fmt.Errorf("invalid range %q", ref)
	}
	r0, c0, err := parseCell(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("invalid range %q: %w", ref, err)
	}
	r1, c1 := r0, c0
	if len(parts) == 2 {
		if r1, c1, err = parseCell(parts[1]); err != nil {
			return Range{}, fmt.Errorf("invalid range %q: %w", ref, err)
		}
	}
	if r1 < r0 {
		r0, r1 = r1, r0
	}
	if c1 < c0 {
		c0, c1 = c1, c0
	}
	return Range{Start: At(container, r0, c0), End: At(container, r1, c1)}, nil
}

// Single reports whether the range covers exactly one cell.
func (r Range) Single() bool {
	return r.Start == r.End
}

// Rows returns the addresses of the range row by row.
func (r Range) Rows() [][]Address {
	out := make([][]Address, 0, r.End.Row-r.Start.Row+1)
	for row := r.Start.Row; row <= r.End.Row; row++ {
		line := make([]Address, 0, r.End.Col-r.Start.Col+1)
		for col := r.Start.Col; col <= r.End.Col; col++ {
			line = append(line, At(r.Start.Container, row, col))
		}
		out = append(out, line)
	}
	return out
}

func (r Range) String() string {
	if r.Single() {
		return r.Start.String()
	}
	return r.Start.String() + ":" + r.End.Cell()
}
