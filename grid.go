package fiscalpdf

import "github.com/pkg/errors"

// Cell is one entry in a table grid. A merged cell carries RowSpan/ColSpan
// greater than 1 and holds the text once; the positions it shadows are
// represented as empty cells whose OriginRow/OriginCol point back at it.
// Merged-cell text is never duplicated into the spanned positions - semantic
// fill-down is the schema mapper's job, not the resolver's.
type Cell struct {
	Text      string
	RowSpan   int
	ColSpan   int
	OriginRow int
	OriginCol int
}

// IsSpanned reports whether the cell is a shadow of a merged origin cell
// elsewhere in the grid.
func (c Cell) IsSpanned(row, col int) bool {
	return c.OriginRow != row || c.OriginCol != col
}

// Grid is the 2-D cell structure produced by the cell resolver. Every
// (row, col) position inside the grid's bounding rectangle is covered by
// exactly one cell's span.
type Grid struct {
	BBox  Rect
	Cells [][]Cell // [row][col]
}

// NumRows returns the number of rows in the grid.
func (g *Grid) NumRows() int {
	return len(g.Cells)
}

// NumCols returns the number of columns in the grid.
func (g *Grid) NumCols() int {
	if len(g.Cells) == 0 {
		return 0
	}
	return len(g.Cells[0])
}

// Cell returns the cell at (row, col). For a spanned position this is the
// empty shadow cell, not the origin.
func (g *Grid) Cell(row, col int) Cell {
	return g.Cells[row][col]
}

// Origin resolves the origin cell covering (row, col), following the
// back-reference for spanned positions.
func (g *Grid) Origin(row, col int) Cell {
	c := g.Cells[row][col]
	return g.Cells[c.OriginRow][c.OriginCol]
}

// Row returns the resolved text of every cell in a row. Spanned positions
// yield empty strings.
func (g *Grid) Row(row int) []string {
	out := make([]string, g.NumCols())
	for c := range g.Cells[row] {
		out[c] = g.Cells[row][c].Text
	}
	return out
}

// Validate checks the exact-cover invariant: every position is either an
// origin cell whose span stays inside the grid, or a shadow whose
// back-reference lands on an origin cell that actually covers it.
func (g *Grid) Validate() error {
	rows, cols := g.NumRows(), g.NumCols()
	for r := 0; r < rows; r++ {
		if len(g.Cells[r]) != cols {
			return errors.Errorf("grid row %d has %d columns, want %d", r, len(g.Cells[r]), cols)
		}
		for c := 0; c < cols; c++ {
			cell := g.Cells[r][c]
			or, oc := cell.OriginRow, cell.OriginCol
			if or < 0 || or >= rows || oc < 0 || oc >= cols {
				return errors.Errorf("cell (%d,%d) references origin (%d,%d) outside grid", r, c, or, oc)
			}
			origin := g.Cells[or][oc]
			if origin.IsSpanned(or, oc) {
				return errors.Errorf("cell (%d,%d) references (%d,%d), which is not an origin cell", r, c, or, oc)
			}
			if origin.RowSpan < 1 || origin.ColSpan < 1 {
				return errors.Errorf("origin cell (%d,%d) has invalid span %dx%d", or, oc, origin.RowSpan, origin.ColSpan)
			}
			if r < or || r >= or+origin.RowSpan || c < oc || c >= oc+origin.ColSpan {
				return errors.Errorf("cell (%d,%d) not covered by its origin (%d,%d) span %dx%d",
					r, c, or, oc, origin.RowSpan, origin.ColSpan)
			}
			if cell.IsSpanned(r, c) && cell.Text != "" {
				return errors.Errorf("spanned cell (%d,%d) carries duplicated text %q", r, c, cell.Text)
			}
		}
	}
	return nil
}
