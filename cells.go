package fiscalpdf

import (
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// bandCoverRatio is how much of a neighboring band a cell's token box must
// cover before the cell is treated as merged across that band.
const bandCoverRatio = 0.5

// ResolveCells assigns every token of a page to its grid cell within one
// located table, joining multi-token cells in visual order (spaces within a
// line, newlines between lines) and resolving merged-cell spans. Spanned
// positions are left explicitly empty with a back-reference to their origin
// cell.
func ResolveCells(geom *PageGeometry, cand TableCandidate) (*Grid, error) {
	nRows, nCols := cand.NumRows(), cand.NumCols()
	if nRows == 0 || nCols == 0 {
		return nil, errors.New("table candidate has no row or column bands")
	}

	grid := &Grid{
		BBox:  cand.BBox,
		Cells: make([][]Cell, nRows),
	}
	for r := 0; r < nRows; r++ {
		grid.Cells[r] = make([]Cell, nCols)
		for c := 0; c < nCols; c++ {
			grid.Cells[r][c] = Cell{RowSpan: 1, ColSpan: 1, OriginRow: r, OriginCol: c}
		}
	}

	// Assign tokens to cells by center-point containment.
	cellTokens := make(map[[2]int][]TextToken)
	for _, tok := range geom.Tokens {
		r := bandIndex(cand.Rows, tok.Box.CenterY())
		c := bandIndex(cand.Cols, tok.Box.CenterX())
		if r < 0 || c < 0 {
			continue
		}
		key := [2]int{r, c}
		cellTokens[key] = append(cellTokens[key], tok)
	}

	// Populate cells in row-major order so span claims are deterministic.
	claimed := make(map[[2]int]bool)
	for r := 0; r < nRows; r++ {
		for c := 0; c < nCols; c++ {
			tokens := cellTokens[[2]int{r, c}]
			if len(tokens) == 0 || claimed[[2]int{r, c}] {
				continue
			}

			bbox := tokens[0].Box
			for _, tok := range tokens {
				bbox = mergeRects(bbox, tok.Box)
			}

			r0, r1 := spanRange(cand.Rows, r, bbox.Y0, bbox.Y1)
			c0, c1 := spanRange(cand.Cols, c, bbox.X0, bbox.X1)
			r0, r1, c0, c1 = clampSpan(r, c, r0, r1, c0, c1, cellTokens, claimed)

			origin := &grid.Cells[r0][c0]
			origin.Text = joinCellText(tokens)
			origin.RowSpan = r1 - r0 + 1
			origin.ColSpan = c1 - c0 + 1
			origin.OriginRow = r0
			origin.OriginCol = c0

			for rr := r0; rr <= r1; rr++ {
				for cc := c0; cc <= c1; cc++ {
					claimed[[2]int{rr, cc}] = true
					if rr == r0 && cc == c0 {
						continue
					}
					grid.Cells[rr][cc] = Cell{
						RowSpan: 1, ColSpan: 1,
						OriginRow: r0, OriginCol: c0,
					}
				}
			}
		}
	}

	if err := grid.Validate(); err != nil {
		return nil, errors.Wrap(err, "resolved grid violates span invariant")
	}
	return grid, nil
}

// cellLineTolerance is the y-distance within which a cell's tokens belong to
// the same visual line.
const cellLineTolerance = 2.0

// joinCellText renders a cell's tokens in visual order: left to right within
// a line, lines joined top to bottom with newlines.
func joinCellText(tokens []TextToken) string {
	sorted := make([]TextToken, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		if math.Abs(sorted[i].Box.Y0-sorted[j].Box.Y0) >= cellLineTolerance {
			return sorted[i].Box.Y0 < sorted[j].Box.Y0
		}
		return sorted[i].Box.X0 < sorted[j].Box.X0
	})

	var b strings.Builder
	lineStart := sorted[0].Box.Y0
	for i, tok := range sorted {
		if i > 0 {
			if tok.Box.Y0-lineStart >= cellLineTolerance {
				b.WriteByte('\n')
				lineStart = tok.Box.Y0
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(tok.Text)
	}
	return b.String()
}

// bandIndex returns the band containing v, or -1 when v falls outside the
// boundary range.
func bandIndex(boundaries []float64, v float64) int {
	for i := 0; i < len(boundaries)-1; i++ {
		if v >= boundaries[i] && v < boundaries[i+1] {
			return i
		}
	}
	return -1
}

// spanRange widens a cell's band range to every adjacent band its content
// box covers by more than bandCoverRatio.
func spanRange(boundaries []float64, band int, lo, hi float64) (int, int) {
	first, last := band, band
	for b := band - 1; b >= 0; b-- {
		if !coversBand(boundaries, b, lo, hi) {
			break
		}
		first = b
	}
	for b := band + 1; b < len(boundaries)-1; b++ {
		if !coversBand(boundaries, b, lo, hi) {
			break
		}
		last = b
	}
	return first, last
}

func coversBand(boundaries []float64, band int, lo, hi float64) bool {
	width := boundaries[band+1] - boundaries[band]
	if width <= 0 {
		return false
	}
	return overlapLength(lo, hi, boundaries[band], boundaries[band+1]) > width*bandCoverRatio
}

// clampSpan shrinks a span so it never swallows a position that carries its
// own tokens or was already claimed by another origin cell. The span grows
// outward from the anchor (r, c) and stops at the first blocked band in each
// direction, so an occupied interior band is never crossed.
func clampSpan(r, c, r0, r1, c0, c1 int, cellTokens map[[2]int][]TextToken, claimed map[[2]int]bool) (int, int, int, int) {
	blocked := func(rr, cc int) bool {
		if rr == r && cc == c {
			return false
		}
		return claimed[[2]int{rr, cc}] || len(cellTokens[[2]int{rr, cc}]) > 0
	}

	nc0, nc1 := c, c
	for cc := c - 1; cc >= c0 && !blockedInCol(cc, r0, r1, blocked); cc-- {
		nc0 = cc
	}
	for cc := c + 1; cc <= c1 && !blockedInCol(cc, r0, r1, blocked); cc++ {
		nc1 = cc
	}

	nr0, nr1 := r, r
	for rr := r - 1; rr >= r0 && !blockedInRow(rr, nc0, nc1, blocked); rr-- {
		nr0 = rr
	}
	for rr := r + 1; rr <= r1 && !blockedInRow(rr, nc0, nc1, blocked); rr++ {
		nr1 = rr
	}
	return nr0, nr1, nc0, nc1
}

func blockedInCol(cc, r0, r1 int, blocked func(int, int) bool) bool {
	for rr := r0; rr <= r1; rr++ {
		if blocked(rr, cc) {
			return true
		}
	}
	return false
}

func blockedInRow(rr, c0, c1 int, blocked func(int, int) bool) bool {
	for cc := c0; cc <= c1; cc++ {
		if blocked(rr, cc) {
			return true
		}
	}
	return false
}
