package fiscalpdf

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Record is one row of the target schema: an amount for a category in a
// fiscal period, with provenance back to the source document and row.
// Amounts are always in whole currency units with the category's canonical
// sign convention applied, regardless of source report quirks. Records are
// immutable once created.
type Record struct {
	Period     FiscalPeriod
	Category   string // canonical slug, or validated free text for unmapped rows
	Amount     decimal.Decimal
	Provenance Provenance
}

// Key returns the record's identity within the canonical series.
func (r Record) Key() SeriesKey {
	return SeriesKey{
		Period:   r.Period,
		Category: r.Category,
		Kind:     r.Provenance.Descriptor.Kind,
	}
}

// SeriesKey uniquely identifies a record in the canonical series.
type SeriesKey struct {
	Period   FiscalPeriod
	Category string
	Kind     ReportKind
}

func (k SeriesKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Kind, k.Period, k.Category)
}
