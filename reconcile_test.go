package fiscalpdf

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDescriptor(t *testing.T, published string, doc string) ReportDescriptor {
	t.Helper()
	date, err := time.Parse("2006-01-02", published)
	require.NoError(t, err)
	desc, err := NewReportDescriptor(RevenueCollections, 2023, Quarterly, date, []byte(doc))
	require.NoError(t, err)
	return desc
}

func testBatch(t *testing.T, desc ReportDescriptor, category, amount string) *Batch {
	t.Helper()
	return &Batch{
		Descriptor: desc,
		Records: []Record{{
			Period:     FiscalPeriod{Year: 2023, Granularity: Quarterly, Index: 2},
			Category:   category,
			Amount:     decimal.RequireFromString(amount),
			Provenance: Provenance{Descriptor: desc, SourcePage: 1, SourceRow: 1},
		}},
	}
}

func TestReconciler_InsertAndReplace(t *testing.T) {
	r, err := NewReconciler(NewMemStore(), testLogger())
	require.NoError(t, err)

	q1 := testDescriptor(t, "2023-01-15", "q1 report")
	res, err := r.Apply(testBatch(t, q1, "wage_tax", "1234.50"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)
	require.NotEmpty(t, res.TxnID)

	key := SeriesKey{
		Period:   FiscalPeriod{Year: 2023, Granularity: Quarterly, Index: 2},
		Category: "wage_tax",
		Kind:     RevenueCollections,
	}
	point, ok := r.Series().Get(key)
	require.True(t, ok)
	require.True(t, point.Amount.Equal(decimal.RequireFromString("1234.50")))

	// A later-dated report revises the value and wins.
	q2 := testDescriptor(t, "2023-04-15", "q2 report")
	res, err = r.Apply(testBatch(t, q2, "wage_tax", "1269.00"))
	require.NoError(t, err)
	require.Equal(t, 1, res.Replaced)
	require.Empty(t, res.Stale)

	point, _ = r.Series().Get(key)
	require.True(t, point.Amount.Equal(decimal.RequireFromString("1269.00")))
	require.Equal(t, q2.Checksum, point.Provenance.Descriptor.Checksum)

	// The revision moved the value by 34.50, past the tolerance.
	require.Len(t, res.Anomalies, 1)
	require.True(t, res.Anomalies[0].Delta.Equal(decimal.RequireFromString("34.50")))
}

func TestReconciler_StaleRejected(t *testing.T) {
	r, err := NewReconciler(NewMemStore(), testLogger())
	require.NoError(t, err)

	later := testDescriptor(t, "2023-04-15", "q2 report")
	_, err = r.Apply(testBatch(t, later, "wage_tax", "1269.00"))
	require.NoError(t, err)

	earlier := testDescriptor(t, "2023-01-15", "q1 report")
	res, err := r.Apply(testBatch(t, earlier, "wage_tax", "1234.50"))
	require.NoError(t, err)
	require.Zero(t, res.Replaced)
	require.Len(t, res.Stale, 1)
	require.True(t, res.Stale[0].Incoming.Amount.Equal(decimal.RequireFromString("1234.50")))

	// The stored value is untouched.
	point, _ := r.Series().Get(res.Stale[0].Key)
	require.True(t, point.Amount.Equal(decimal.RequireFromString("1269.00")))
}

func TestReconciler_Idempotent(t *testing.T) {
	r, err := NewReconciler(NewMemStore(), testLogger())
	require.NoError(t, err)

	desc := testDescriptor(t, "2023-01-15", "q1 report")
	_, err = r.Apply(testBatch(t, desc, "wage_tax", "1234.50"))
	require.NoError(t, err)

	// Re-applying the same report is a checksum-level no-op.
	res, err := r.Apply(testBatch(t, desc, "wage_tax", "1234.50"))
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Zero(t, res.Inserted)
	require.Equal(t, 1, r.Series().Len())
}

func TestReconciler_EqualDateSameValue(t *testing.T) {
	r, err := NewReconciler(NewMemStore(), testLogger())
	require.NoError(t, err)

	a := testDescriptor(t, "2023-01-15", "report a")
	b := testDescriptor(t, "2023-01-15", "report b")

	_, err = r.Apply(testBatch(t, a, "wage_tax", "1234.50"))
	require.NoError(t, err)

	res, err := r.Apply(testBatch(t, b, "wage_tax", "1234.50"))
	require.NoError(t, err)
	require.False(t, res.Duplicate, "different documents are not checksum duplicates")
	require.Equal(t, 1, res.Unchanged)
	require.Empty(t, res.Anomalies)
}

func TestReconciler_EqualDateConflict(t *testing.T) {
	r, err := NewReconciler(NewMemStore(), testLogger())
	require.NoError(t, err)

	a := testDescriptor(t, "2023-01-15", "report a")
	b := testDescriptor(t, "2023-01-15", "report b")

	_, err = r.Apply(testBatch(t, a, "wage_tax", "1234.50"))
	require.NoError(t, err)

	res, err := r.Apply(testBatch(t, b, "wage_tax", "9999.00"))
	require.NoError(t, err)

	// Equally dated disagreement keeps the stored value and flags it.
	require.Len(t, res.Stale, 1)
	require.Len(t, res.Anomalies, 1)

	point, _ := r.Series().Get(res.Stale[0].Key)
	require.True(t, point.Amount.Equal(decimal.RequireFromString("1234.50")))
}

func TestReconciler_SaveFailureRollsBack(t *testing.T) {
	store := NewMemStore()
	r, err := NewReconciler(store, testLogger())
	require.NoError(t, err)

	desc := testDescriptor(t, "2023-01-15", "q1 report")
	_, err = r.Apply(testBatch(t, desc, "wage_tax", "1234.50"))
	require.NoError(t, err)

	store.FailSave = true
	later := testDescriptor(t, "2023-04-15", "q2 report")
	_, err = r.Apply(testBatch(t, later, "wage_tax", "1269.00"))
	require.Error(t, err)

	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	require.Equal(t, "save", storageErr.Op)

	// The live series still holds the pre-batch state.
	key := SeriesKey{
		Period:   FiscalPeriod{Year: 2023, Granularity: Quarterly, Index: 2},
		Category: "wage_tax",
		Kind:     RevenueCollections,
	}
	point, _ := r.Series().Get(key)
	require.True(t, point.Amount.Equal(decimal.RequireFromString("1234.50")))
	require.False(t, r.Series().Seen(later.Checksum))
}

func TestSeries_SnapshotDeterministic(t *testing.T) {
	s := NewSeries()
	prov := Provenance{Descriptor: ReportDescriptor{Kind: RevenueCollections}}
	for _, cat := range []string{"zebra", "alpha", "middle"} {
		s.put(SeriesPoint{
			Key: SeriesKey{
				Period:   FiscalPeriod{Year: 2023, Granularity: Annual},
				Category: cat,
				Kind:     RevenueCollections,
			},
			Amount:     decimal.New(1, 0),
			Provenance: prov,
		})
	}

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, "alpha", snap[0].Key.Category)
	require.Equal(t, "middle", snap[1].Key.Category)
	require.Equal(t, "zebra", snap[2].Key.Category)
}
