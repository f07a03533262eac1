package ui

import (
	"strings"

	"cellscript/internal/session"

	"github.com/charmbracelet/lipgloss"
)

// Table renders static rows under a header line.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string

	// rowStyles[i], when set, replaces the body style for Rows[i].
	rowStyles map[int]lipgloss.Style
}

// NewTable creates a new Table with the given title and headers.
func NewTable(title string, headers []string) *Table {
	return &Table{
		Title:     title,
		Headers:   headers,
		Rows:      make([][]string, 0),
		rowStyles: make(map[int]lipgloss.Style),
	}
}

// AddRow adds a row to the table.
func (t *Table) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

// AddStyledRow adds a row rendered with style instead of the body style.
func (t *Table) AddStyledRow(style lipgloss.Style, row ...string) {
	if t.rowStyles == nil {
		t.rowStyles = make(map[int]lipgloss.Style)
	}
	t.rowStyles[len(t.Rows)] = style
	t.AddRow(row...)
}

// ResultTable lists a container's cells with their result kind and value.
func ResultTable(container string, cells []session.Cell, styles Styles) *Table {
	t := NewTable(container, []string{"Cell", "Kind", "Result"})
	for _, c := range cells {
		kind := c.Result.Kind()
		t.AddStyledRow(styles.ForKind(kind), c.Address.Cell(), kind.String(), singleLine(c.Result.String()))
	}
	return t
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// View renders the table using the provided styles.
func (t *Table) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder

	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	colWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(colWidths) {
				if w := lipgloss.Width(cell); w > colWidths[i] {
					colWidths[i] = w
				}
			}
		}
	}

	// Width includes the padding.
	for i := range colWidths {
		colWidths[i] += 2
	}

	headerStyle := styles.Bold.Padding(0, 1)
	sepStyle := styles.Muted

	for i, h := range t.Headers {
		sb.WriteString(headerStyle.Width(colWidths[i]).Render(h))
		if i < len(t.Headers)-1 {
			sb.WriteString(sepStyle.Render("|"))
		}
	}
	sb.WriteString("\n")

	totalWidth := len(t.Headers) - 1
	for _, w := range colWidths {
		totalWidth += w
	}
	sb.WriteString(sepStyle.Render(strings.Repeat("-", totalWidth)) + "\n")

	for r, row := range t.Rows {
		rowStyle := styles.Body
		if s, ok := t.rowStyles[r]; ok {
			rowStyle = s
		}
		rowStyle = rowStyle.Padding(0, 1)
		for i, cell := range row {
			if i < len(colWidths) {
				sb.WriteString(rowStyle.Width(colWidths[i]).Render(cell))
				if i < len(row)-1 {
					sb.WriteString(sepStyle.Render("|"))
				}
			}
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
