package fiscalpdf

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/klippa-app/go-pdfium/references"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// PageSource is the document surface the pipeline extracts from. *Extractor
// satisfies it; tests substitute their own.
type PageSource interface {
	OpenDocument(pdfBytes []byte) (references.FPDF_DOCUMENT, int, error)
	Close(doc references.FPDF_DOCUMENT)
	ExtractPage(doc references.FPDF_DOCUMENT, pageIndex int) (*PageGeometry, error)
}

// Pipeline wires the stages together: geometry extraction, table location,
// cell resolution, schema mapping, validation, and reconciliation. Character
// extraction runs serially because the underlying PDF engine instance is not
// safe for concurrent use; everything after it fans out per page.
type Pipeline struct {
	Extractor  PageSource
	Rules      *RuleBook
	Validator  *Validator
	Reconciler *Reconciler
	Logger     *slog.Logger

	// Workers bounds concurrent per-page processing. Zero means one page
	// at a time.
	Workers int
	// PageTimeout bounds each page's processing stage. Zero disables the
	// per-page deadline.
	PageTimeout time.Duration
	// Locator tunes table detection. The zero value is replaced with
	// DefaultLocatorSettings.
	Locator LocatorSettings
}

// NewPipeline returns a pipeline with default tuning.
func NewPipeline(extractor PageSource, rules *RuleBook, reconciler *Reconciler, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Extractor:   extractor,
		Rules:       rules,
		Validator:   NewValidator(),
		Reconciler:  reconciler,
		Logger:      logger,
		Workers:     runtime.GOMAXPROCS(0),
		PageTimeout: 30 * time.Second,
		Locator:     DefaultLocatorSettings(),
	}
}

// ProcessReport runs one report end to end and reconciles its records into
// the canonical series. Already-reconciled reports are detected by checksum
// before any extraction work is spent on them.
func (p *Pipeline) ProcessReport(ctx context.Context, pdfBytes []byte, desc ReportDescriptor) (*ReportResult, error) {
	result := &ReportResult{Descriptor: desc}
	logger := p.Logger.With("kind", desc.Kind, "fiscal_year", desc.FiscalYear)

	if desc.Checksum != "" && p.Reconciler.Series().Seen(desc.Checksum) {
		result.Duplicate = true
		logger.Info("report already reconciled, skipping", "checksum", desc.Checksum)
		return result, nil
	}

	rules, err := p.Rules.Lookup(desc.Kind, desc.FiscalYear)
	if err != nil {
		return nil, err
	}

	doc, pageCount, err := p.Extractor.OpenDocument(pdfBytes)
	if err != nil {
		return nil, err
	}
	defer p.Extractor.Close(doc)

	geoms := make([]*PageGeometry, pageCount)
	pageErrs := make([]error, pageCount)
	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		geoms[i], pageErrs[i] = p.extractPage(ctx, doc, i)
	}

	outcomes := make([]PageOutcome, pageCount)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i := 0; i < pageCount; i++ {
		g.Go(func() error {
			outcome := PageOutcome{Page: i + 1}
			if pageErrs[i] != nil {
				outcome.Err = pageErrs[i]
			} else {
				outcome = p.processPage(gctx, geoms[i], desc, rules)
			}
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &Batch{Descriptor: desc}
	failed := 0
	for _, outcome := range outcomes {
		result.Pages = append(result.Pages, outcome)
		if outcome.Err != nil {
			failed++
			logger.Warn("page failed", "page", outcome.Page, "error", outcome.Err)
			continue
		}
		batch.Records = append(batch.Records, outcome.Records...)
		batch.Rejections = append(batch.Rejections, outcome.Rejections...)
		result.Warnings = append(result.Warnings, outcome.Warnings...)
		result.Unmapped = append(result.Unmapped, outcome.Unmapped...)
	}
	if pageCount > 0 && failed == pageCount {
		return nil, errors.Errorf("every page of the document failed extraction (%d pages)", pageCount)
	}
	result.Records = len(batch.Records)
	result.Rejections = batch.Rejections

	result.Anomalies = append(result.Anomalies, CheckTotals(batch, rules)...)

	recon, err := p.Reconciler.Apply(batch)
	if err != nil {
		return nil, err
	}
	result.Reconcile = recon
	result.Anomalies = append(result.Anomalies, recon.Anomalies...)

	logger.Info("report processed",
		"pages", pageCount,
		"records", result.Records,
		"rejections", len(result.Rejections),
		"warnings", len(result.Warnings),
		"anomalies", len(result.Anomalies))
	return result, nil
}

// extractPage bounds one page's extraction by PageTimeout. A page that does
// not return in time is abandoned with an *ExtractionError; the extraction
// goroutine is left to finish on its own since the PDF engine offers no
// cancellation.
func (p *Pipeline) extractPage(ctx context.Context, doc references.FPDF_DOCUMENT, index int) (*PageGeometry, error) {
	if p.PageTimeout <= 0 {
		return p.Extractor.ExtractPage(doc, index)
	}

	ctx, cancel := context.WithTimeout(ctx, p.PageTimeout)
	defer cancel()

	type extraction struct {
		geom *PageGeometry
		err  error
	}
	done := make(chan extraction, 1)
	go func() {
		geom, err := p.Extractor.ExtractPage(doc, index)
		done <- extraction{geom: geom, err: err}
	}()

	select {
	case res := <-done:
		return res.geom, res.err
	case <-ctx.Done():
		return nil, &ExtractionError{Page: index + 1, Reason: "page extraction timed out"}
	}
}

// processPage runs the CPU stages for one extracted page under the per-page
// deadline.
func (p *Pipeline) processPage(ctx context.Context, geom *PageGeometry, desc ReportDescriptor, rules *RuleSet) PageOutcome {
	outcome := PageOutcome{Page: geom.Page}

	if p.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.PageTimeout)
		defer cancel()
	}

	candidates := LocateTables(geom, p.Locator)
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			outcome.Err = &ExtractionError{Page: geom.Page, Reason: "page processing timed out"}
			return outcome
		}

		grid, err := ResolveCells(geom, cand)
		if err != nil {
			// A malformed candidate is a detection artifact, not a page
			// failure. Record it and move on to the next table.
			outcome.Warnings = append(outcome.Warnings, MapWarning{
				Row:     -1,
				Message: "discarded table candidate: " + err.Error(),
			})
			continue
		}
		outcome.Tables++

		mapped := MapGrid(grid, desc, geom.Page, rules)
		outcome.Warnings = append(outcome.Warnings, mapped.Warnings...)
		for _, row := range mapped.Rows {
			if row.Unmapped {
				outcome.Unmapped = append(outcome.Unmapped, &MappingFailure{
					Row: row.SourceRow, Label: row.RawCategory,
				})
			}
		}

		batch := p.Validator.ValidateTable(mapped, rules)
		outcome.Records = append(outcome.Records, batch.Records...)
		outcome.Rejections = append(outcome.Rejections, batch.Rejections...)
	}

	sort.SliceStable(outcome.Records, func(i, j int) bool {
		return outcome.Records[i].Provenance.SourceRow < outcome.Records[j].Provenance.SourceRow
	})

	p.Logger.Debug("page processed",
		"page", geom.Page,
		"tables", outcome.Tables,
		"records", len(outcome.Records),
		"rejections", len(outcome.Rejections))
	return outcome
}
