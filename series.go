package fiscalpdf

import (
	"sort"

	"github.com/shopspring/decimal"
)

// SeriesPoint is one committed observation in the longitudinal dataset.
// Provenance travels with the value so any point can be traced back to the
// page and row it came from.
type SeriesPoint struct {
	Key        SeriesKey
	Amount     decimal.Decimal
	Provenance Provenance
}

// Series is the canonical dataset: at most one point per series key. It is
// not safe for concurrent use; the reconciler serializes access.
type Series struct {
	points map[SeriesKey]SeriesPoint
	// checksums of reports already reconciled, for duplicate short-circuit.
	seen map[string]bool
}

func NewSeries() *Series {
	return &Series{
		points: make(map[SeriesKey]SeriesPoint),
		seen:   make(map[string]bool),
	}
}

func (s *Series) Len() int { return len(s.points) }

// Get returns the point at key, if present.
func (s *Series) Get(key SeriesKey) (SeriesPoint, bool) {
	p, ok := s.points[key]
	return p, ok
}

func (s *Series) put(p SeriesPoint) { s.points[p.Key] = p }

// Seen reports whether a report with this checksum has already been
// reconciled into the series.
func (s *Series) Seen(checksum string) bool { return s.seen[checksum] }

func (s *Series) markSeen(checksum string) { s.seen[checksum] = true }

// Snapshot returns every point ordered by key string. The ordering is
// deterministic so exports and comparisons are stable across runs.
func (s *Series) Snapshot() []SeriesPoint {
	out := make([]SeriesPoint, 0, len(s.points))
	for _, p := range s.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Clone returns a deep copy of the series. The reconciler stages commits
// against a clone so a failed persist leaves the live series untouched.
func (s *Series) Clone() *Series {
	c := NewSeries()
	for k, p := range s.points {
		c.points[k] = p
	}
	for sum := range s.seen {
		c.seen[sum] = true
	}
	return c
}
