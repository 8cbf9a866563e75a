package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table prints rows in aligned columns under a bold header
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
}

// NewTable creates a table writing to w
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{w: w, headers: headers}
}

// AddRow adds a row; missing cells are blank, extra cells are dropped
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table. A table without rows prints nothing.
func (t *Table) Render() {
	if len(t.rows) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	header := color.New(color.Bold, color.FgCyan)
	rule := color.New(color.FgHiBlack)

	t.line(widths, t.headers, header.Sprint)
	dashes := make([]string, len(widths))
	for i, n := range widths {
		dashes[i] = strings.Repeat("─", n)
	}
	t.line(widths, dashes, rule.Sprint)
	for _, row := range t.rows {
		t.line(widths, row, fmt.Sprint)
	}
}

func (t *Table) line(widths []int, cells []string, paint func(...interface{}) string) {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		pad := ""
		if i < len(cells)-1 {
			pad = strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
		}
		parts[i] = paint(cell) + pad
	}
	fmt.Fprintln(t.w, strings.Join(parts, "  "))
}
