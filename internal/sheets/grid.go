package sheets

import "strings"

// Cell addresses a single cell by zero-based row and column.
type Cell struct {
	Row int
	Col int
}

// Match is one hit of a text search: the cell and its full text.
type Match struct {
	Cell
	Text string
}

// Grid is an immutable in-memory snapshot of a sheet's cell values. The
// whole grid is fetched in one read so that searching and offset lookups
// never go back to the remote backend.
type Grid struct {
	rows [][]string
}

// NewGrid wraps raw row data. The slice is used as-is and must not be
// modified afterwards.
func NewGrid(rows [][]string) Grid {
	return Grid{rows: rows}
}

// IsEmpty reports whether the snapshot holds no rows at all.
func (g Grid) IsEmpty() bool {
	return len(g.rows) == 0
}

// NumRows returns the number of rows in the snapshot.
func (g Grid) NumRows() int {
	return len(g.rows)
}

// Value returns the cell at (row, col), or "" when out of range. Sheets
// report ragged rows, so short rows are treated as trailing blanks.
func (g Grid) Value(row, col int) string {
	if row < 0 || row >= len(g.rows) {
		return ""
	}
	r := g.rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// At returns the value at the given cell.
func (g Grid) At(c Cell) string {
	return g.Value(c.Row, c.Col)
}

// Offset returns the value of the cell rows below and cols to the right of
// at. Negative offsets look up and left.
func (g Grid) Offset(at Cell, rows, cols int) string {
	return g.Value(at.Row+rows, at.Col+cols)
}

// FindAll returns every cell whose text contains substr, scanning rows top
// to bottom and cells left to right.
func (g Grid) FindAll(substr string) []Match {
	var out []Match
	for r, row := range g.rows {
		for c, v := range row {
			if strings.Contains(v, substr) {
				out = append(out, Match{Cell: Cell{Row: r, Col: c}, Text: v})
			}
		}
	}
	return out
}

// Row returns up to width leading cells of the given row, padded with ""
// so callers always see a fixed-width record.
func (g Grid) Row(row, width int) []string {
	out := make([]string, width)
	for i := 0; i < width; i++ {
		out[i] = g.Value(row, i)
	}
	return out
}

// RowKey builds a comparison key from the first width cells of a row.
// Values are compared exactly, whitespace included.
func (g Grid) RowKey(row, width int) string {
	return strings.Join(g.Row(row, width), "\x1f")
}
