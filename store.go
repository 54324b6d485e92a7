package fiscalpdf

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Store persists the canonical series between runs.
type Store interface {
	// Load returns the stored series, or nil when nothing has been stored.
	Load() (*Series, error)
	// Save replaces the stored series. Save must not corrupt the previous
	// state on failure.
	Save(*Series) error
}

// seriesRow is the CSV shape of one series point. Provenance columns ride
// along so the exported dataset stays traceable without the source PDFs.
type seriesRow struct {
	Kind          string `csv:"report_kind"`
	Period        string `csv:"fiscal_period"`
	Category      string `csv:"category"`
	Amount        string `csv:"amount"`
	FiscalYear    int    `csv:"report_fiscal_year"`
	PublishedDate string `csv:"report_published"`
	Checksum      string `csv:"report_checksum"`
	SourcePage    int    `csv:"source_page"`
	SourceRow     int    `csv:"source_row"`
}

// CSVStore keeps the series in a single CSV file. Saves write a sibling
// temp file and rename it over the target, so a crash mid-save leaves the
// previous file intact.
type CSVStore struct {
	Path string
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{Path: path}
}

func (c *CSVStore) Load() (*Series, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "opening series file")
	}
	defer f.Close()

	var rows []*seriesRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrap(err, "decoding series file")
	}

	series := NewSeries()
	for i, row := range rows {
		point, err := rowPoint(row)
		if err != nil {
			return nil, errors.Wrapf(err, "series file row %d", i+1)
		}
		series.put(point)
		if row.Checksum != "" {
			series.markSeen(row.Checksum)
		}
	}
	return series, nil
}

func (c *CSVStore) Save(series *Series) error {
	points := series.Snapshot()
	rows := make([]*seriesRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, pointRow(p))
	}

	dir := filepath.Dir(c.Path)
	tmp, err := os.CreateTemp(dir, ".series-*.csv")
	if err != nil {
		return errors.Wrap(err, "creating temp series file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := gocsv.MarshalFile(&rows, tmp); err != nil {
		tmp.Close()
		return errors.Wrap(err, "encoding series file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp series file")
	}
	if err := os.Rename(tmpPath, c.Path); err != nil {
		return errors.Wrap(err, "replacing series file")
	}
	return nil
}

func pointRow(p SeriesPoint) *seriesRow {
	desc := p.Provenance.Descriptor
	return &seriesRow{
		Kind:          string(p.Key.Kind),
		Period:        p.Key.Period.String(),
		Category:      p.Key.Category,
		Amount:        p.Amount.String(),
		FiscalYear:    desc.FiscalYear,
		PublishedDate: desc.PublishedDate.Format("2006-01-02"),
		Checksum:      desc.Checksum,
		SourcePage:    p.Provenance.SourcePage,
		SourceRow:     p.Provenance.SourceRow,
	}
}

func rowPoint(row *seriesRow) (SeriesPoint, error) {
	kind, err := ParseReportKind(row.Kind)
	if err != nil {
		return SeriesPoint{}, err
	}
	period, err := ParseFiscalPeriod(row.Period)
	if err != nil {
		return SeriesPoint{}, err
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return SeriesPoint{}, errors.Wrapf(err, "parsing amount %q", row.Amount)
	}
	published, err := time.Parse("2006-01-02", row.PublishedDate)
	if err != nil {
		return SeriesPoint{}, errors.Wrapf(err, "parsing published date %q", row.PublishedDate)
	}

	return SeriesPoint{
		Key: SeriesKey{Period: period, Category: row.Category, Kind: kind},
		Amount: amount,
		Provenance: Provenance{
			Descriptor: ReportDescriptor{
				Kind:          kind,
				FiscalYear:    row.FiscalYear,
				Granularity:   period.Granularity,
				PublishedDate: published,
				Checksum:      row.Checksum,
			},
			SourcePage: row.SourcePage,
			SourceRow:  row.SourceRow,
		},
	}, nil
}

// MemStore is an in-memory store for tests and one-shot runs.
type MemStore struct {
	series *Series
	// FailSave forces the next Save to fail, for rollback tests.
	FailSave bool
}

func NewMemStore() *MemStore { return &MemStore{} }

func (m *MemStore) Load() (*Series, error) {
	if m.series == nil {
		return nil, nil
	}
	return m.series.Clone(), nil
}

func (m *MemStore) Save(s *Series) error {
	if m.FailSave {
		return errors.New("save disabled")
	}
	m.series = s.Clone()
	return nil
}
