package fiscalpdf

// PageOutcome summarizes one page's trip through the per-page stages.
type PageOutcome struct {
	Page     int
	Tables   int
	Records  []Record
	Warnings []MapWarning
	// Unmapped are rows whose category matched no alias; they still flow
	// through as records under their raw text.
	Unmapped []*MappingFailure
	// Rejections are the page's row-level validation failures.
	Rejections []*ValidationFailure
	// Err is set when the page itself failed (no text layer, timeout). The
	// page contributes nothing, sibling pages are unaffected.
	Err error
}

// ReportResult is the full accounting of one report's processing run.
// Nothing is silently dropped: every warning, rejection, and page failure
// the run produced is reported here.
type ReportResult struct {
	Descriptor ReportDescriptor
	Pages      []PageOutcome
	Records    int
	Rejections []*ValidationFailure
	Warnings   []MapWarning
	Unmapped   []*MappingFailure
	Anomalies  []Anomaly
	// Reconcile is nil when the run stopped before reconciliation, for
	// example on a duplicate report.
	Reconcile *ReconcileResult
	// Duplicate is set when the report's checksum was already reconciled
	// and processing was skipped entirely.
	Duplicate bool
}

// PageErrors returns the failures of pages that produced no output.
func (r *ReportResult) PageErrors() []error {
	var errs []error
	for _, p := range r.Pages {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errs
}
