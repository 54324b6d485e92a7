package fiscalpdf

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
)

// ReportKind enumerates the source document families the pipeline
// understands. The kind selects the mapping rule set and forms part of every
// series key.
type ReportKind string

const (
	RevenueCollections   ReportKind = "revenue-collections"
	SpendingByDepartment ReportKind = "spending-by-department"
	QuarterlySummary     ReportKind = "quarterly-summary"
	CashFlow             ReportKind = "cash-flow"
	FundBalances         ReportKind = "fund-balances"
)

// knownKinds is the closed set of report kinds.
var knownKinds = map[ReportKind]bool{
	RevenueCollections:   true,
	SpendingByDepartment: true,
	QuarterlySummary:     true,
	CashFlow:             true,
	FundBalances:         true,
}

// ParseReportKind validates a report kind string.
func ParseReportKind(s string) (ReportKind, error) {
	k := ReportKind(s)
	if !knownKinds[k] {
		return "", errors.Errorf("unknown report kind %q", s)
	}
	return k, nil
}

// ReportDescriptor identifies one source document. It is created once per
// input file and attached as provenance to every record derived from it.
// PublishedDate is the document's publication date, not a fiscal period; the
// reconciler uses it to decide which of two reports is more authoritative.
type ReportDescriptor struct {
	Kind          ReportKind
	FiscalYear    int
	Granularity   Granularity
	PublishedDate time.Time
	Checksum      string
}

// NewReportDescriptor builds a descriptor for a document, computing the
// SHA-256 checksum of its bytes.
func NewReportDescriptor(kind ReportKind, fiscalYear int, gran Granularity, published time.Time, doc []byte) (ReportDescriptor, error) {
	if !knownKinds[kind] {
		return ReportDescriptor{}, errors.Errorf("unknown report kind %q", kind)
	}
	sum := sha256.Sum256(doc)
	return ReportDescriptor{
		Kind:          kind,
		FiscalYear:    fiscalYear,
		Granularity:   gran,
		PublishedDate: published,
		Checksum:      hex.EncodeToString(sum[:]),
	}, nil
}

// Provenance traces a record back to its source document and row.
type Provenance struct {
	Descriptor ReportDescriptor
	SourcePage int
	SourceRow  int
}
