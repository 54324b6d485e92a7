package fiscalpdf

import "testing"

// plainGrid builds a grid of independent 1x1 cells from row texts.
func plainGrid(rows [][]string) *Grid {
	g := &Grid{Cells: make([][]Cell, len(rows))}
	for r, row := range rows {
		g.Cells[r] = make([]Cell, len(row))
		for c, text := range row {
			g.Cells[r][c] = Cell{Text: text, RowSpan: 1, ColSpan: 1, OriginRow: r, OriginCol: c}
		}
	}
	return g
}

func TestGrid_Validate(t *testing.T) {
	g := plainGrid([][]string{
		{"a", "b"},
		{"c", "d"},
	})
	if err := g.Validate(); err != nil {
		t.Fatalf("plain grid should validate: %v", err)
	}
}

func TestGrid_Validate_MergedSpan(t *testing.T) {
	g := plainGrid([][]string{
		{"header", ""},
		{"c", "d"},
	})
	// "header" spans both columns of row 0.
	g.Cells[0][0].ColSpan = 2
	g.Cells[0][1] = Cell{RowSpan: 1, ColSpan: 1, OriginRow: 0, OriginCol: 0}

	if err := g.Validate(); err != nil {
		t.Fatalf("merged grid should validate: %v", err)
	}

	origin := g.Origin(0, 1)
	if origin.Text != "header" {
		t.Errorf("Origin(0,1).Text = %q, want %q", origin.Text, "header")
	}
	if !g.Cell(0, 1).IsSpanned(0, 1) {
		t.Error("shadow position should report as spanned")
	}
	if g.Cell(0, 1).Text != "" {
		t.Error("shadow position should carry no text")
	}
}

func TestGrid_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Grid)
	}{
		{
			name: "origin outside grid",
			mutate: func(g *Grid) {
				g.Cells[0][0].OriginRow = 5
			},
		},
		{
			name: "shadow references non-origin",
			mutate: func(g *Grid) {
				// (1,1) points at (0,1), which is itself a shadow.
				g.Cells[0][0].ColSpan = 2
				g.Cells[0][1] = Cell{RowSpan: 1, ColSpan: 1, OriginRow: 0, OriginCol: 0}
				g.Cells[1][1] = Cell{RowSpan: 1, ColSpan: 1, OriginRow: 0, OriginCol: 1}
			},
		},
		{
			name: "origin span does not cover shadow",
			mutate: func(g *Grid) {
				g.Cells[1][1] = Cell{RowSpan: 1, ColSpan: 1, OriginRow: 0, OriginCol: 0}
			},
		},
		{
			name: "spanned cell carries text",
			mutate: func(g *Grid) {
				g.Cells[0][0].ColSpan = 2
				g.Cells[0][1] = Cell{Text: "dup", RowSpan: 1, ColSpan: 1, OriginRow: 0, OriginCol: 0}
			},
		},
		{
			name: "ragged row",
			mutate: func(g *Grid) {
				g.Cells[1] = g.Cells[1][:1]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := plainGrid([][]string{
				{"a", "b"},
				{"c", "d"},
			})
			tt.mutate(g)
			if err := g.Validate(); err == nil {
				t.Error("Validate() should fail")
			}
		})
	}
}

func TestGrid_Row(t *testing.T) {
	g := plainGrid([][]string{
		{"a", "b", "c"},
	})
	got := g.Row(0)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Row(0)[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
