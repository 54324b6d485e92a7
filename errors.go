package fiscalpdf

import "fmt"

// ExtractionError reports a page that produced no usable text layer, or a
// page whose extraction was abandoned on timeout. It is fatal for that page
// only; sibling pages keep processing.
type ExtractionError struct {
	Page   int
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("page %d: extraction failed: %s", e.Page, e.Reason)
}

// MappingFailure reports a data row whose category could not be classified
// against the active rule set. The row is surfaced as unmapped, not dropped.
type MappingFailure struct {
	Row   int
	Label string
}

func (e *MappingFailure) Error() string {
	return fmt.Sprintf("row %d: no category rule matches %q", e.Row, e.Label)
}

// ValidationFailure reports a single row that violated a record constraint.
// One row failing never blocks sibling rows.
type ValidationFailure struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("row %d: invalid %s: %s", e.Row, e.Field, e.Reason)
}

// ReconciliationConflict reports an incoming record rejected because the
// stored record for the same key comes from an equally or later dated report.
type ReconciliationConflict struct {
	Key      SeriesKey
	Existing Record
	Incoming Record
}

func (e *ReconciliationConflict) Error() string {
	return fmt.Sprintf("stale record for %s: stored report dated %s, incoming %s",
		e.Key,
		e.Existing.Provenance.Descriptor.PublishedDate.Format("2006-01-02"),
		e.Incoming.Provenance.Descriptor.PublishedDate.Format("2006-01-02"))
}

// StorageError reports a failed persistence operation on the canonical
// series. It is fatal for the current batch; the prior series state is left
// unchanged.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("series storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
