package fiscalpdf

import (
	"math"
	"sort"
)

// LocatorSettings configures table location behavior.
type LocatorSettings struct {
	// RowTolerance is the y-distance within which tokens belong to the same
	// row band.
	RowTolerance float64

	// SegmentGap is the minimum horizontal whitespace between tokens that
	// separates two cells on the same row.
	SegmentGap float64

	// SnapTolerance merges candidate boundaries closer than this into one,
	// favoring fewer, wider columns over spurious splits.
	SnapTolerance float64

	// MinTableRows is the minimum number of multi-segment rows a region
	// needs to count as a table.
	MinTableRows int

	// TextLineWidthRatio: a single-segment row wider than this fraction of
	// the page is prose and terminates a table region.
	TextLineWidthRatio float64
}

// DefaultLocatorSettings returns settings tuned for fiscal report layouts:
// dense numeric columns separated by generous whitespace, with ruling lines
// present only in some vintages.
func DefaultLocatorSettings() LocatorSettings {
	return LocatorSettings{
		RowTolerance:       3.0,
		SegmentGap:         10.0,
		SnapTolerance:      5.0,
		MinTableRows:       2,
		TextLineWidthRatio: 0.5,
	}
}

// rowBand is a horizontal cluster of tokens belonging to one visual row.
type rowBand struct {
	top      float64
	bottom   float64
	tokens   []TextToken
	segments [][]TextToken
}

// LocateTables scans page geometry for rectangular table regions. Tokens are
// clustered into row bands by y-proximity, rows into candidate regions, and
// column boundaries are taken from explicit vertical ruling lines when the
// page has them, falling back to whitespace-gap inference otherwise.
// Returning zero candidates is a normal outcome, not an error: callers treat
// "no table on this page" as silently skippable.
func LocateTables(geom *PageGeometry, settings LocatorSettings) []TableCandidate {
	if geom == nil || len(geom.Tokens) == 0 {
		return nil
	}

	bands := clusterRows(geom.Tokens, settings.RowTolerance)
	for i := range bands {
		bands[i].segments = splitSegments(bands[i].tokens, settings.SegmentGap)
	}

	regions := groupTableRegions(bands, geom.Width, settings)

	var candidates []TableCandidate
	for _, region := range regions {
		cand, ok := buildCandidate(region, geom, settings)
		if !ok {
			continue
		}
		candidates = append(candidates, cand)
	}
	return candidates
}

// clusterRows groups tokens into row bands by y-coordinate proximity.
func clusterRows(tokens []TextToken, tolerance float64) []rowBand {
	var bands []rowBand
	for _, tok := range tokens {
		placed := false
		for i := range bands {
			if math.Abs(bands[i].top-tok.Box.Y0) <= tolerance {
				bands[i].tokens = append(bands[i].tokens, tok)
				bands[i].bottom = math.Max(bands[i].bottom, tok.Box.Y1)
				placed = true
				break
			}
		}
		if !placed {
			bands = append(bands, rowBand{
				top:    tok.Box.Y0,
				bottom: tok.Box.Y1,
				tokens: []TextToken{tok},
			})
		}
	}

	sort.Slice(bands, func(i, j int) bool {
		return bands[i].top < bands[j].top
	})
	for i := range bands {
		sort.Slice(bands[i].tokens, func(a, b int) bool {
			return bands[i].tokens[a].Box.X0 < bands[i].tokens[b].Box.X0
		})
	}
	return bands
}

// splitSegments splits a row's tokens into cell segments wherever the
// horizontal gap exceeds the segment threshold.
func splitSegments(tokens []TextToken, gap float64) [][]TextToken {
	if len(tokens) == 0 {
		return nil
	}
	segments := [][]TextToken{{tokens[0]}}
	for i := 1; i < len(tokens); i++ {
		last := segments[len(segments)-1]
		prev := last[len(last)-1]
		if tokens[i].Box.X0-prev.Box.X1 > gap {
			segments = append(segments, []TextToken{tokens[i]})
		} else {
			segments[len(segments)-1] = append(last, tokens[i])
		}
	}
	return segments
}

// groupTableRegions collects maximal runs of table-like rows. A row with two
// or more segments is table-like; a narrow single-segment row (a section
// label or a merged cell) is allowed inside a run; a wide single-segment row
// is prose and ends the run.
func groupTableRegions(bands []rowBand, pageWidth float64, settings LocatorSettings) [][]rowBand {
	var regions [][]rowBand
	var current []rowBand

	flush := func() {
		if countTableRows(current) >= settings.MinTableRows {
			regions = append(regions, trimRegion(current))
		}
		current = nil
	}

	for _, band := range bands {
		switch {
		case len(band.segments) >= 2:
			current = append(current, band)
		case rowWidth(band) <= pageWidth*settings.TextLineWidthRatio:
			current = append(current, band)
		default:
			flush()
		}
	}
	flush()

	return regions
}

func countTableRows(bands []rowBand) int {
	n := 0
	for _, b := range bands {
		if len(b.segments) >= 2 {
			n++
		}
	}
	return n
}

// trimRegion drops leading and trailing single-segment rows so a region
// starts and ends on actual table rows.
func trimRegion(bands []rowBand) []rowBand {
	start, end := 0, len(bands)
	for start < end && len(bands[start].segments) < 2 {
		start++
	}
	for end > start && len(bands[end-1].segments) < 2 {
		end--
	}
	return bands[start:end]
}

func rowWidth(band rowBand) float64 {
	if len(band.tokens) == 0 {
		return 0
	}
	return band.tokens[len(band.tokens)-1].Box.X1 - band.tokens[0].Box.X0
}

// buildCandidate derives boundary coordinates for one region.
func buildCandidate(region []rowBand, geom *PageGeometry, settings LocatorSettings) (TableCandidate, bool) {
	bbox := regionBBox(region)

	rows := rowBoundaries(region, geom.Rules, bbox, settings)
	cols := columnBoundaries(region, geom.Rules, bbox, settings)
	if len(rows) < 3 || len(cols) < 3 {
		// Fewer than two row or column bands is not a table.
		return TableCandidate{}, false
	}

	return TableCandidate{BBox: bbox, Rows: rows, Cols: cols}, true
}

func regionBBox(region []rowBand) Rect {
	bbox := Rect{X0: math.MaxFloat64, Y0: math.MaxFloat64, X1: -math.MaxFloat64, Y1: -math.MaxFloat64}
	for _, band := range region {
		for _, tok := range band.tokens {
			bbox = mergeRects(bbox, tok.Box)
		}
	}
	return bbox
}

// rowBoundaries prefers horizontal ruling lines spanning the region; without
// them, boundaries sit midway between adjacent row bands.
func rowBoundaries(region []rowBand, rules []Edge, bbox Rect, settings LocatorSettings) []float64 {
	var ruled []float64
	for _, e := range rules {
		if e.Orientation != "h" {
			continue
		}
		if e.Top < bbox.Y0-settings.SnapTolerance || e.Top > bbox.Y1+settings.SnapTolerance {
			continue
		}
		// The rule must span most of the region to be a row separator.
		if overlapLength(e.X0, e.X1, bbox.X0, bbox.X1) >= bbox.Width()*0.8 {
			ruled = append(ruled, e.Top)
		}
	}
	if merged := mergeBoundaries(ruled, settings.SnapTolerance); len(merged) >= len(region)+1 {
		return merged
	}

	bounds := make([]float64, 0, len(region)+1)
	bounds = append(bounds, region[0].top-1.0)
	for i := 0; i < len(region)-1; i++ {
		bounds = append(bounds, (region[i].bottom+region[i+1].top)/2)
	}
	bounds = append(bounds, region[len(region)-1].bottom+1.0)
	return bounds
}

// columnBoundaries prefers vertical ruling lines spanning the region;
// without them, columns are inferred from whitespace gaps between the
// region's merged token intervals.
func columnBoundaries(region []rowBand, rules []Edge, bbox Rect, settings LocatorSettings) []float64 {
	var ruled []float64
	for _, e := range rules {
		if e.Orientation != "v" {
			continue
		}
		if e.X0 < bbox.X0-settings.SnapTolerance || e.X0 > bbox.X1+settings.SnapTolerance {
			continue
		}
		if overlapLength(e.Top, e.Bottom, bbox.Y0, bbox.Y1) >= bbox.Height()*0.8 {
			ruled = append(ruled, e.X0)
		}
	}
	if merged := mergeBoundaries(ruled, settings.SnapTolerance); len(merged) >= 3 {
		// Make sure the outer edges are covered so every token lands in a band.
		if merged[0] > bbox.X0 {
			merged = append([]float64{bbox.X0 - 1.0}, merged...)
		}
		if merged[len(merged)-1] < bbox.X1 {
			merged = append(merged, bbox.X1+1.0)
		}
		return merged
	}

	intervals := columnIntervals(region, settings.SegmentGap)
	if len(intervals) < 2 {
		return nil
	}

	bounds := make([]float64, 0, len(intervals)+1)
	bounds = append(bounds, intervals[0][0]-1.0)
	for i := 0; i < len(intervals)-1; i++ {
		bounds = append(bounds, (intervals[i][1]+intervals[i+1][0])/2)
	}
	bounds = append(bounds, intervals[len(intervals)-1][1]+1.0)
	return mergeBoundaries(bounds, settings.SnapTolerance)
}

// columnIntervals projects every segment onto the x axis and merges
// overlapping or nearly touching intervals. The gaps that survive across all
// rows are the column separators.
func columnIntervals(region []rowBand, gap float64) [][2]float64 {
	var spans [][2]float64
	for _, band := range region {
		for _, seg := range band.segments {
			spans = append(spans, [2]float64{seg[0].Box.X0, seg[len(seg)-1].Box.X1})
		}
	}
	if len(spans) == 0 {
		return nil
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })

	merged := [][2]float64{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s[0] <= last[1]+gap {
			last[1] = math.Max(last[1], s[1])
		} else {
			merged = append(merged, s)
		}
	}
	return merged
}

// mergeBoundaries snaps boundary positions within tolerance to their cluster
// average, merging near-duplicates. Favors fewer, wider columns.
func mergeBoundaries(positions []float64, tolerance float64) []float64 {
	if len(positions) == 0 {
		return nil
	}
	sorted := make([]float64, len(positions))
	copy(sorted, positions)
	sort.Float64s(sorted)

	type cluster struct {
		sum   float64
		count int
	}
	clusters := []cluster{{sum: sorted[0], count: 1}}
	for _, p := range sorted[1:] {
		last := &clusters[len(clusters)-1]
		if p-last.sum/float64(last.count) <= tolerance {
			last.sum += p
			last.count++
		} else {
			clusters = append(clusters, cluster{sum: p, count: 1})
		}
	}

	out := make([]float64, len(clusters))
	for i, c := range clusters {
		out[i] = c.sum / float64(c.count)
	}
	return out
}

func overlapLength(a0, a1, b0, b1 float64) float64 {
	lo := math.Max(a0, b0)
	hi := math.Min(a1, b1)
	if hi <= lo {
		return 0
	}
	return hi - lo
}
