package fiscalpdf

import "math"

// Rect represents a bounding box in page coordinates.
type Rect struct {
	X0 float64 // Left
	Y0 float64 // Top (after conversion from PDF coordinates)
	X1 float64 // Right
	Y1 float64 // Bottom (after conversion from PDF coordinates)
}

// Width returns the width of the rectangle.
func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

// Height returns the height of the rectangle.
func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// CenterX returns the horizontal center of the rectangle.
func (r Rect) CenterX() float64 {
	return (r.X0 + r.X1) / 2
}

// CenterY returns the vertical center of the rectangle.
func (r Rect) CenterY() float64 {
	return (r.Y0 + r.Y1) / 2
}

// mergeRects merges two rectangles into their bounding box.
func mergeRects(r1, r2 Rect) Rect {
	return Rect{
		X0: math.Min(r1.X0, r2.X0),
		Y0: math.Min(r1.Y0, r2.Y0),
		X1: math.Max(r1.X1, r2.X1),
		Y1: math.Max(r1.Y1, r2.Y1),
	}
}

// TextToken is a positioned run of text on a page. Tokens are the unit the
// table locator and cell resolver operate on; a token never crosses a
// whitespace boundary in the source text.
type TextToken struct {
	Text     string
	Box      Rect
	FontSize float64
}

// Edge represents a horizontal or vertical ruling line on a page.
// Based on pdfplumber's edge structure.
type Edge struct {
	X0          float64 // Left x coordinate
	X1          float64 // Right x coordinate
	Top         float64 // Top y coordinate
	Bottom      float64 // Bottom y coordinate
	Width       float64 // Width (for horizontal edges)
	Height      float64 // Height (for vertical edges)
	Orientation string  // "h" for horizontal, "v" for vertical
}

// PageGeometry holds all positioned text extracted from one page, in reading
// order (top-to-bottom, left-to-right), together with any explicit ruling
// lines found on the page. Immutable once extracted.
type PageGeometry struct {
	Page   int // 1-indexed page number
	Width  float64
	Height float64
	Tokens []TextToken
	Rules  []Edge
}

// TableCandidate is a rectangular table region located on a page, described
// by its bounding box and the row/column band boundaries the cell resolver
// uses to build a grid. Boundaries are sorted ascending and include both
// outer edges, so a table with n columns has n+1 column boundaries.
type TableCandidate struct {
	BBox Rect
	Rows []float64 // y coordinates of row boundaries
	Cols []float64 // x coordinates of column boundaries
}

// NumRows returns the number of row bands in the candidate.
func (t TableCandidate) NumRows() int {
	if len(t.Rows) < 2 {
		return 0
	}
	return len(t.Rows) - 1
}

// NumCols returns the number of column bands in the candidate.
func (t TableCandidate) NumCols() int {
	if len(t.Cols) < 2 {
		return 0
	}
	return len(t.Cols) - 1
}
