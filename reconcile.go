package fiscalpdf

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Authority ordering between a stored point and an incoming record is by
// report publication date: later-dated reports win, earlier ones are stale.
// Equal dates with disagreeing values are a source-data defect, so the
// stored value is kept and the disagreement is flagged.

// ReconcileResult summarizes one batch's application against the series.
type ReconcileResult struct {
	// TxnID identifies this reconciliation commit in logs.
	TxnID     string
	Inserted  int
	Replaced  int
	Unchanged int
	Stale     []*ReconciliationConflict
	Anomalies []Anomaly
	// Duplicate is set when the batch's report checksum was already
	// reconciled; the batch is a no-op.
	Duplicate bool
}

// Reconciler merges validated batches into the canonical series and persists
// the result. A batch commits atomically: either every accepted change lands
// and the store save succeeds, or the live series is left exactly as it was.
type Reconciler struct {
	mu     sync.Mutex
	series *Series
	store  Store
	logger *slog.Logger

	// RevisionTolerance bounds how far a replacement may move a value before
	// the revision is flagged for review.
	RevisionTolerance decimal.Decimal
}

// NewReconciler loads the current series from store. A store miss starts an
// empty series.
func NewReconciler(store Store, logger *slog.Logger) (*Reconciler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	series, err := store.Load()
	if err != nil {
		return nil, &StorageError{Op: "load", Err: err}
	}
	if series == nil {
		series = NewSeries()
	}
	return &Reconciler{
		series:            series,
		store:             store,
		logger:            logger,
		RevisionTolerance: decimal.RequireFromString("0.3"),
	}, nil
}

// Series returns the live canonical series.
func (r *Reconciler) Series() *Series {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.series
}

// Apply merges a validated batch into the series under the authority
// ordering and persists the merged state. Stale and conflicting records are
// reported in the result, never silently dropped.
func (r *Reconciler) Apply(batch *Batch) (*ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := &ReconcileResult{TxnID: uuid.NewString()}

	checksum := batch.Descriptor.Checksum
	if checksum != "" && r.series.Seen(checksum) {
		result.Duplicate = true
		r.logger.Info("skipping already reconciled report",
			"txn", result.TxnID,
			"kind", batch.Descriptor.Kind,
			"checksum", checksum)
		return result, nil
	}

	// Stage against a clone so a failed save leaves the live series intact.
	staged := r.series.Clone()

	for _, rec := range batch.Records {
		key := rec.Key()
		existing, ok := staged.Get(key)
		if !ok {
			staged.put(SeriesPoint{Key: key, Amount: rec.Amount, Provenance: rec.Provenance})
			result.Inserted++
			continue
		}

		storedDate := existing.Provenance.Descriptor.PublishedDate
		incomingDate := rec.Provenance.Descriptor.PublishedDate

		switch {
		case incomingDate.After(storedDate):
			delta := rec.Amount.Sub(existing.Amount).Abs()
			if delta.GreaterThan(r.RevisionTolerance) {
				result.Anomalies = append(result.Anomalies, Anomaly{
					Key:   key,
					Delta: delta,
					Message: "revision moved value from " + existing.Amount.String() +
						" to " + rec.Amount.String(),
				})
			}
			staged.put(SeriesPoint{Key: key, Amount: rec.Amount, Provenance: rec.Provenance})
			result.Replaced++

		case incomingDate.Before(storedDate):
			result.Stale = append(result.Stale, &ReconciliationConflict{
				Key:      key,
				Existing: pointRecord(existing),
				Incoming: rec,
			})

		default:
			if rec.Amount.Equal(existing.Amount) {
				result.Unchanged++
				continue
			}
			// Same publication date, different value: keep the stored point
			// and flag the disagreement.
			result.Anomalies = append(result.Anomalies, Anomaly{
				Key:   key,
				Delta: rec.Amount.Sub(existing.Amount).Abs(),
				Message: "equally dated reports disagree: stored " + existing.Amount.String() +
					", incoming " + rec.Amount.String(),
			})
			result.Stale = append(result.Stale, &ReconciliationConflict{
				Key:      key,
				Existing: pointRecord(existing),
				Incoming: rec,
			})
		}
	}

	if checksum != "" {
		staged.markSeen(checksum)
	}

	if err := r.store.Save(staged); err != nil {
		r.logger.Error("series save failed, batch rolled back",
			"txn", result.TxnID, "error", err)
		return nil, &StorageError{Op: "save", Err: err}
	}
	r.series = staged

	r.logger.Info("batch reconciled",
		"txn", result.TxnID,
		"kind", batch.Descriptor.Kind,
		"inserted", result.Inserted,
		"replaced", result.Replaced,
		"unchanged", result.Unchanged,
		"stale", len(result.Stale),
		"anomalies", len(result.Anomalies))
	return result, nil
}

func pointRecord(p SeriesPoint) Record {
	return Record{
		Period:     p.Key.Period,
		Category:   p.Key.Category,
		Amount:     p.Amount,
		Provenance: p.Provenance,
	}
}
