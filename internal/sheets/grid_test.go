package sheets

import "testing"

func testGrid() Grid {
	return NewGrid([][]string{
		{"My Society", "", "", ""},
		{"Date", "Description", "In", "Out"},
		{"01/01/2023", "Rent", "", "50"},
		{"Totals for Events", "120", "50"},
		{"", "", "70"},
	})
}

func TestGridValueOutOfRange(t *testing.T) {
	g := testGrid()
	tests := []struct {
		name     string
		row, col int
		want     string
	}{
		{"in range", 2, 0, "01/01/2023"},
		{"ragged row", 3, 3, ""},
		{"row past end", 99, 0, ""},
		{"negative row", -1, 0, ""},
		{"negative col", 0, -1, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.Value(tt.row, tt.col); got != tt.want {
				t.Errorf("Value(%d,%d) = %q, want %q", tt.row, tt.col, got, tt.want)
			}
		})
	}
}

func TestGridFindAll(t *testing.T) {
	g := testGrid()
	matches := g.FindAll("Totals for ")
	if len(matches) != 1 {
		t.Fatalf("FindAll = %d matches, want 1", len(matches))
	}
	m := matches[0]
	if m.Row != 3 || m.Col != 0 || m.Text != "Totals for Events" {
		t.Errorf("unexpected match: %+v", m)
	}
	if got := g.FindAll("no such text"); got != nil {
		t.Errorf("expected no matches, got %+v", got)
	}
}

func TestGridOffset(t *testing.T) {
	g := testGrid()
	at := Cell{Row: 3, Col: 0}
	if got := g.Offset(at, 0, 1); got != "120" {
		t.Errorf("Offset(0,1) = %q, want 120", got)
	}
	if got := g.Offset(at, 1, 2); got != "70" {
		t.Errorf("Offset(1,2) = %q, want 70", got)
	}
	if got := g.Offset(at, 10, 0); got != "" {
		t.Errorf("Offset past end = %q, want empty", got)
	}
}

func TestGridRowKeyExactWhitespace(t *testing.T) {
	a := NewGrid([][]string{{"01/01/2023", "Rent", "", "50"}})
	b := NewGrid([][]string{{"01/01/2023", "Rent ", "", "50"}})
	if a.RowKey(0, 4) == b.RowKey(0, 4) {
		t.Errorf("keys must differ on whitespace")
	}
	if a.RowKey(0, 4) != NewGrid([][]string{{"01/01/2023", "Rent", "", "50", "extra"}}).RowKey(0, 4) {
		t.Errorf("columns past the fixed width must not affect the key")
	}
}
