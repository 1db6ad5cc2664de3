package models

import "strings"

// Table is a generic named-column container for static GTFS tables.
// GTFS tables are optional-column by spec, so no fixed schema is enforced;
// consumers must check column presence via Col before reading cells.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
}

func NewTable(name string, columns []string) *Table {
	return &Table{Name: name, Columns: columns}
}

// Col returns the index of a column by name (case-insensitive), or -1.
func (t *Table) Col(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(c), name) {
			return i
		}
	}
	return -1
}

func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

func (t *Table) NumRows() int {
	return len(t.Rows)
}

func (t *Table) Append(row []string) {
	t.Rows = append(t.Rows, row)
}

// Cell returns the value at (row, col), tolerating short rows.
func (t *Table) Cell(row, col int) string {
	if col < 0 || row < 0 || row >= len(t.Rows) || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}
