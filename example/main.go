package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/klippa-app/go-pdfium/webassembly"
	"github.com/urfave/cli/v3"

	"github.com/cityledger/fiscalpdf"
)

func main() {
	cmd := &cli.Command{
		Name:  "fiscalpdf",
		Usage: "Extract fiscal report tables from PDF into the canonical series",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input PDF report",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "kind",
				Usage:    "Report kind (e.g. revenue-collections)",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "fiscal-year",
				Usage:    "Fiscal year the report covers",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "granularity",
				Usage: "Report granularity: annual, quarterly, or monthly",
				Value: "quarterly",
			},
			&cli.StringFlag{
				Name:     "published",
				Usage:    "Report publication date (YYYY-MM-DD)",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "rules",
				Usage: "Directory of rule set YAML files",
				Value: "rules",
			},
			&cli.StringFlag{
				Name:  "series",
				Usage: "Canonical series CSV file",
				Value: "series.csv",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent page workers",
				Value: 4,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
		},
		Action: processReport,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func processReport(ctx context.Context, cmd *cli.Command) error {
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	kind, err := fiscalpdf.ParseReportKind(cmd.String("kind"))
	if err != nil {
		return err
	}
	gran, err := fiscalpdf.ParseGranularity(cmd.String("granularity"))
	if err != nil {
		return err
	}
	published, err := time.Parse("2006-01-02", cmd.String("published"))
	if err != nil {
		return fmt.Errorf("invalid published date: %w", err)
	}

	pdfBytes, err := os.ReadFile(cmd.String("input"))
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	desc, err := fiscalpdf.NewReportDescriptor(kind, cmd.Int("fiscal-year"), gran, published, pdfBytes)
	if err != nil {
		return err
	}

	rules, err := fiscalpdf.LoadRuleSets(cmd.String("rules"))
	if err != nil {
		return err
	}

	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  1,
		MaxTotal: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise pdfium: %w", err)
	}
	defer pool.Close()

	instance, err := pool.GetInstance(time.Second * 30)
	if err != nil {
		return fmt.Errorf("failed to get pdfium instance: %w", err)
	}

	store := fiscalpdf.NewCSVStore(cmd.String("series"))
	reconciler, err := fiscalpdf.NewReconciler(store, logger)
	if err != nil {
		return err
	}

	pipeline := fiscalpdf.NewPipeline(fiscalpdf.NewExtractor(instance), rules, reconciler, logger)
	pipeline.Workers = cmd.Int("workers")

	result, err := pipeline.ProcessReport(ctx, pdfBytes, desc)
	if err != nil {
		return err
	}

	if result.Duplicate {
		fmt.Fprintln(os.Stderr, "Report already reconciled, nothing to do.")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Processed %d pages: %d records", len(result.Pages), result.Records)
	if result.Reconcile != nil {
		fmt.Fprintf(os.Stderr, " (%d inserted, %d replaced, %d stale)",
			result.Reconcile.Inserted, result.Reconcile.Replaced, len(result.Reconcile.Stale))
	}
	fmt.Fprintln(os.Stderr)

	ruleSet, err := rules.Lookup(kind, cmd.Int("fiscal-year"))
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: row %d: %s\n", w.Row, w.Message)
	}
	for _, rej := range result.Rejections {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", rej)
	}
	for _, a := range result.Anomalies {
		fmt.Fprintf(os.Stderr, "anomaly: %s (%s): %s\n",
			ruleSet.DisplayName(a.Key.Category), a.Key.Period, a.Message)
	}
	for _, perr := range result.PageErrors() {
		fmt.Fprintf(os.Stderr, "page error: %v\n", perr)
	}
	return nil
}
