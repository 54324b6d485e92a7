package fiscalpdf

import (
	"math"
	"testing"
)

func tok(text string, x0, y0, x1, y1 float64) TextToken {
	return TextToken{Text: text, Box: Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}, FontSize: 10}
}

// threeByThree lays out a 3x3 table: three row bands at y 100/120/140 and
// three columns at x 50/150/250, separated by wide whitespace gaps.
func threeByThree() []TextToken {
	var tokens []TextToken
	for r := 0; r < 3; r++ {
		y0 := 100.0 + float64(r)*20
		tokens = append(tokens,
			tok("a", 50, y0, 90, y0+10),
			tok("b", 150, y0, 190, y0+10),
			tok("c", 250, y0, 290, y0+10),
		)
	}
	return tokens
}

func TestLocateTables_WhitespaceInference(t *testing.T) {
	geom := &PageGeometry{Page: 1, Width: 612, Height: 792, Tokens: threeByThree()}

	candidates := LocateTables(geom, DefaultLocatorSettings())
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}

	cand := candidates[0]
	if cand.NumRows() != 3 {
		t.Errorf("NumRows() = %d, want 3", cand.NumRows())
	}
	if cand.NumCols() != 3 {
		t.Errorf("NumCols() = %d, want 3", cand.NumCols())
	}
	if cand.BBox.X0 != 50 || cand.BBox.X1 != 290 {
		t.Errorf("BBox x range = [%v, %v], want [50, 290]", cand.BBox.X0, cand.BBox.X1)
	}
}

func TestLocateTables_RuledColumnsPreferred(t *testing.T) {
	geom := &PageGeometry{
		Page: 1, Width: 612, Height: 792,
		Tokens: threeByThree(),
		Rules: []Edge{
			{X0: 45, X1: 45, Top: 95, Bottom: 155, Height: 60, Orientation: "v"},
			{X0: 120, X1: 120, Top: 95, Bottom: 155, Height: 60, Orientation: "v"},
			{X0: 220, X1: 220, Top: 95, Bottom: 155, Height: 60, Orientation: "v"},
			{X0: 293, X1: 293, Top: 95, Bottom: 155, Height: 60, Orientation: "v"},
		},
	}

	candidates := LocateTables(geom, DefaultLocatorSettings())
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}

	cand := candidates[0]
	if cand.NumCols() != 3 {
		t.Fatalf("NumCols() = %d, want 3", cand.NumCols())
	}
	// Boundaries come from the ruling lines, not whitespace midpoints.
	if math.Abs(cand.Cols[0]-45) > 0.001 {
		t.Errorf("Cols[0] = %v, want ruled position 45", cand.Cols[0])
	}
	if math.Abs(cand.Cols[1]-120) > 0.001 {
		t.Errorf("Cols[1] = %v, want ruled position 120", cand.Cols[1])
	}
}

func TestLocateTables_ProseSplitsRegions(t *testing.T) {
	var tokens []TextToken
	for r := 0; r < 2; r++ {
		y0 := 100.0 + float64(r)*20
		tokens = append(tokens,
			tok("a", 50, y0, 90, y0+10),
			tok("b", 150, y0, 190, y0+10),
			tok("c", 250, y0, 290, y0+10),
		)
	}
	// A wide single-segment prose line between the two table blocks.
	tokens = append(tokens, tok("a long explanatory paragraph line", 50, 145, 450, 155))
	for r := 0; r < 2; r++ {
		y0 := 190.0 + float64(r)*20
		tokens = append(tokens,
			tok("d", 50, y0, 90, y0+10),
			tok("e", 150, y0, 190, y0+10),
			tok("f", 250, y0, 290, y0+10),
		)
	}

	geom := &PageGeometry{Page: 1, Width: 612, Height: 792, Tokens: tokens}
	candidates := LocateTables(geom, DefaultLocatorSettings())
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2 (prose splits the page)", len(candidates))
	}
}

func TestLocateTables_NoTable(t *testing.T) {
	// Single-column narrow lines never form a table.
	tokens := []TextToken{
		tok("heading", 50, 100, 150, 110),
		tok("note", 50, 120, 120, 130),
		tok("footer", 50, 140, 140, 150),
	}
	geom := &PageGeometry{Page: 1, Width: 612, Height: 792, Tokens: tokens}

	if got := LocateTables(geom, DefaultLocatorSettings()); len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}

	if got := LocateTables(&PageGeometry{Page: 1, Width: 612, Height: 792}, DefaultLocatorSettings()); got != nil {
		t.Error("empty page should yield no candidates")
	}
}

func TestMergeBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		positions []float64
		tolerance float64
		want      []float64
	}{
		{
			name:      "near duplicates snap to cluster average",
			positions: []float64{100, 102, 200},
			tolerance: 5,
			want:      []float64{101, 200},
		},
		{
			name:      "distinct positions survive",
			positions: []float64{100, 150, 200},
			tolerance: 5,
			want:      []float64{100, 150, 200},
		},
		{
			name:      "empty input",
			positions: nil,
			tolerance: 5,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeBoundaries(tt.positions, tt.tolerance)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if math.Abs(got[i]-tt.want[i]) > 0.001 {
					t.Errorf("position %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestOverlapLength(t *testing.T) {
	if got := overlapLength(0, 10, 5, 20); got != 5 {
		t.Errorf("overlapLength = %v, want 5", got)
	}
	if got := overlapLength(0, 10, 20, 30); got != 0 {
		t.Errorf("disjoint overlapLength = %v, want 0", got)
	}
}
