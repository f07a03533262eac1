package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Blank(t *testing.T) {
	p := NewParser()
	for _, src := range []string{"", "   \n\t", "# just a note\n   # another"} {
		tree, err := p.Parse(src)
		require.NoError(t, err)
		assert.True(t, tree.Blank(), "%q should be blank", src)
		assert.Equal(t, StmtNone, tree.Last().Kind)
	}
}

func TestParse_LastStatement(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Statement
	}{
		{
			name: "simple assignment",
			src:  "x = 5",
			want: Statement{Kind: StmtAssignment, Text: "x = 5", Expr: "5", Target: "x"},
		},
		{
			name: "assignment of call",
			src:  "y = 1\np = plot([1, 2])",
			want: Statement{Kind: StmtAssignment, Text: "p = plot([1, 2])", Expr: "plot([1, 2])", Call: "plot", Target: "p"},
		},
		{
			name: "bare call",
			src:  "ref(\"A1\")  # trailing comment\n",
			want: Statement{Kind: StmtExpression, Text: "ref(\"A1\")", Expr: "ref(\"A1\")", Call: "ref"},
		},
		{
			name: "bare expression",
			src:  "x = 2\nx * 3",
			want: Statement{Kind: StmtExpression, Text: "x * 3", Expr: "x * 3"},
		},
		{
			name: "method call is not a plain call",
			src:  "m.plot(1)",
			want: Statement{Kind: StmtExpression, Text: "m.plot(1)", Expr: "m.plot(1)"},
		},
		{
			name: "augmented",
			src:  "total = 1\ntotal += 2",
			want: Statement{Kind: StmtAssignment, Text: "total += 2", Expr: "2", Target: "total", Augmented: true},
		},
		{
			name: "annotated",
			src:  "n: int = 3",
			want: Statement{Kind: StmtAssignment, Text: "n: int = 3", Expr: "3", Target: "n", Annotated: true},
		},
		{
			name: "tuple target",
			src:  "a, b = 1, 2",
			want: Statement{Kind: StmtAssignment, Text: "a, b = 1, 2", Expr: "1, 2", Target: "b"},
		},
		{
			name: "chained",
			src:  "a = b = 7",
			want: Statement{Kind: StmtAssignment, Text: "a = b = 7", Expr: "7", Target: "b"},
		},
		{
			name: "compound statement",
			src:  "for i in range(3):\n    x = i\n",
			want: Statement{Kind: StmtOther, Text: "for i in range(3):\n    x = i"},
		},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := p.Parse(tt.src)
			require.NoError(t, err)
			assert.False(t, tree.Blank())
			assert.Equal(t, tt.want, tree.Last())
		})
	}
}

func TestParse_ErrorRecovery(t *testing.T) {
	p := NewParser()
	tree, err := p.Parse("x = (")
	require.NoError(t, err)
	assert.True(t, tree.HasError())
	assert.Equal(t, StmtOther, tree.Last().Kind)
}

func TestParse_Statements(t *testing.T) {
	p := NewParser()
	tree, err := p.Parse("a = 1\n# note\nb = 2\nprint(a + b)\n")
	require.NoError(t, err)
	require.Len(t, tree.Statements(), 3)
	assert.Equal(t, "a", tree.Statements()[0].Target)
	assert.True(t, tree.Last().IsCallTo("print"))
	assert.False(t, tree.Last().IsCallTo("plot"))
}

func TestStripAnnotations(t *testing.T) {
	p := NewParser()
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "plain", src: "x = 1", want: "x = 1"},
		{name: "annotated", src: "x: int = 5", want: "x = 5"},
		{name: "bare", src: "x: int\nx = 2", want: "pass\nx = 2"},
		{name: "generic type", src: "xs: list[int] = [1, 2]", want: "xs = [1, 2]"},
		{name: "nested", src: "if True:\n    y: float = 1.5\n", want: "if True:\n    y = 1.5\n"},
		{name: "dict and slice untouched", src: "d = {\"a\": 1}\ns = xs[1:]", want: "d = {\"a\": 1}\ns = xs[1:]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.StripAnnotations(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
