package display

import (
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// Alignment represents column alignment options
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// Table renders rows inside an ASCII border
type Table struct {
	headers    []string
	rows       [][]string
	alignments map[int]Alignment
	footer     []string
	maxWidth   int
}

// NewTable creates a table with the given headers
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, alignments: make(map[int]Alignment), maxWidth: terminalWidth()}
}

// AddRow appends a row
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// SetFooter sets a row rendered below a separator
func (t *Table) SetFooter(cells ...string) {
	t.footer = cells
}

// AlignRight right-aligns a column, typically a count
func (t *Table) AlignRight(column int) {
	t.alignments[column] = AlignRight
}

// Render returns the table as a string
func (t *Table) Render() string {
	widths := t.columnWidths()

	var b strings.Builder
	border := t.border(widths)
	b.WriteString(border)
	if len(t.headers) > 0 {
		b.WriteString(t.row(t.headers, widths))
		b.WriteString(border)
	}
	for _, row := range t.rows {
		b.WriteString(t.row(row, widths))
	}
	if len(t.footer) > 0 {
		b.WriteString(border)
		b.WriteString(t.row(t.footer, widths))
	}
	b.WriteString(border)
	return b.String()
}

// RenderTo writes the table to w
func (t *Table) RenderTo(w io.Writer) {
	io.WriteString(w, t.Render())
}

func (t *Table) columnWidths() []int {
	columns := max(len(t.headers), len(t.footer))
	for _, row := range t.rows {
		columns = max(columns, len(row))
	}

	widths := make([]int, columns)
	measure := func(row []string) {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}
	measure(t.headers)
	for _, row := range t.rows {
		measure(row)
	}
	measure(t.footer)

	// shrink the widest column until the table fits the terminal
	if t.maxWidth > 0 {
		for total(widths) > t.maxWidth {
			widest := 0
			for i := range widths {
				if widths[i] > widths[widest] {
					widest = i
				}
			}
			if widths[widest] <= 8 {
				break
			}
			widths[widest]--
		}
	}
	return widths
}

func total(widths []int) int {
	sum := 1
	for _, w := range widths {
		sum += w + 3
	}
	return sum
}

func (t *Table) border(widths []int) string {
	var b strings.Builder
	b.WriteString("+")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteString("+")
	}
	b.WriteString("\n")
	return b.String()
}

func (t *Table) row(cells []string, widths []int) string {
	var b strings.Builder
	b.WriteString("|")
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = truncate(cells[i], w)
		}
		pad := strings.Repeat(" ", w-utf8.RuneCountInString(cell))
		b.WriteString(" ")
		if t.alignments[i] == AlignRight {
			b.WriteString(pad + cell)
		} else {
			b.WriteString(cell + pad)
		}
		b.WriteString(" |")
	}
	b.WriteString("\n")
	return b.String()
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

// terminalWidth returns the stdout width, or 0 when it is not a terminal
func terminalWidth() int {
	width, _, err := term.GetSize(1)
	if err != nil {
		return 0
	}
	return width
}
