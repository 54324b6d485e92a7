package fiscalpdf

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Validator builds typed records from mapped rows, enforcing the record
// constraints. Validation is per-row and independent: one row's failure
// never blocks sibling rows.
type Validator struct {
	// YearsBack/YearsAhead bound how far a period may sit from the report's
	// declared fiscal year. Reports routinely carry prior-year actuals and
	// forward projections, so the window is asymmetric.
	YearsBack  int
	YearsAhead int
}

// NewValidator returns a validator with the default declared-range window.
func NewValidator() *Validator {
	return &Validator{YearsBack: 10, YearsAhead: 5}
}

// Batch is the partition a validated table always yields: accepted records
// plus the per-row rejections, which are surfaced to the caller, never
// swallowed.
type Batch struct {
	Descriptor ReportDescriptor
	Records    []Record
	Rejections []*ValidationFailure
}

// ValidateTable converts every mapped row into records. Wide-format rows
// yield one record per period column; a bad value rejects only that value.
func (v *Validator) ValidateTable(table *MappedTable, rules *RuleSet) *Batch {
	batch := &Batch{Descriptor: table.Descriptor}

	for _, row := range table.Rows {
		category, fail := v.resolveCategory(row)
		if fail != nil {
			batch.Rejections = append(batch.Rejections, fail)
			continue
		}

		prov := Provenance{
			Descriptor: table.Descriptor,
			SourcePage: table.Page,
			SourceRow:  row.SourceRow,
		}

		if len(row.Amounts) > 0 {
			for _, pa := range row.Amounts {
				rec, fail := v.buildRecord(row.SourceRow, category, pa.Period, pa.Raw, prov, rules)
				if fail != nil {
					batch.Rejections = append(batch.Rejections, fail)
					continue
				}
				batch.Records = append(batch.Records, rec)
			}
			continue
		}

		periodLabel, ok := row.Fields[FieldPeriod]
		if !ok {
			batch.Rejections = append(batch.Rejections, &ValidationFailure{
				Row: row.SourceRow, Field: FieldPeriod, Reason: "missing required field",
			})
			continue
		}
		period, err := ParseFiscalPeriod(periodLabel)
		if err != nil {
			batch.Rejections = append(batch.Rejections, &ValidationFailure{
				Row: row.SourceRow, Field: FieldPeriod, Reason: err.Error(),
			})
			continue
		}

		rec, fail := v.buildRecord(row.SourceRow, category, period, row.Fields[FieldAmount], prov, rules)
		if fail != nil {
			batch.Rejections = append(batch.Rejections, fail)
			continue
		}
		batch.Records = append(batch.Records, rec)
	}

	return batch
}

func (v *Validator) resolveCategory(row RowMapping) (string, *ValidationFailure) {
	if row.Category != "" {
		return row.Category, nil
	}
	// Unmapped rows keep flowing under their raw text so the gap surfaces
	// downstream instead of vanishing.
	if raw := strings.TrimSpace(row.RawCategory); raw != "" {
		return raw, nil
	}
	return "", &ValidationFailure{
		Row: row.SourceRow, Field: FieldCategory, Reason: "missing required field",
	}
}

func (v *Validator) buildRecord(sourceRow int, category string, period FiscalPeriod, rawAmount string, prov Provenance, rules *RuleSet) (Record, *ValidationFailure) {
	if rawAmount == "" {
		return Record{}, &ValidationFailure{
			Row: sourceRow, Field: FieldAmount, Reason: "missing required field",
		}
	}

	amount, err := ParseAmount(rawAmount)
	if err != nil {
		return Record{}, &ValidationFailure{
			Row: sourceRow, Field: FieldAmount, Reason: err.Error(),
		}
	}

	if !period.Valid() {
		return Record{}, &ValidationFailure{
			Row: sourceRow, Field: FieldPeriod, Reason: "invalid fiscal period " + period.String(),
		}
	}

	fy := prov.Descriptor.FiscalYear
	if period.Year < fy-v.YearsBack || period.Year > fy+v.YearsAhead {
		return Record{}, &ValidationFailure{
			Row: sourceRow, Field: FieldPeriod,
			Reason: "period " + period.String() + " outside the report's declared range",
		}
	}

	switch rules.SignFor(category) {
	case SignNonNegative:
		if amount.IsNegative() {
			return Record{}, &ValidationFailure{
				Row: sourceRow, Field: FieldAmount,
				Reason: "negative amount for non-negative category " + category,
			}
		}
	case SignNonPositive:
		if amount.IsPositive() {
			return Record{}, &ValidationFailure{
				Row: sourceRow, Field: FieldAmount,
				Reason: "positive amount for non-positive category " + category,
			}
		}
	}

	return Record{
		Period:     period,
		Category:   category,
		Amount:     amount,
		Provenance: prov,
	}, nil
}

// ParseAmount parses source amount text into a decimal. Thousands
// separators, currency symbols, and accounting-style parenthesized negatives
// are accepted.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, errors.New("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, errors.Errorf("non-numeric amount %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// Anomaly flags a value for human review. Anomalies are informational: they
// never block processing.
type Anomaly struct {
	Key     SeriesKey
	Delta   decimal.Decimal
	Message string
}

// CheckTotals verifies the rule set's declared total relationships within a
// validated batch: for each period, the total category's amount should equal
// the sum of its components up to the rule's tolerance. Violations are
// reported as anomalies.
func CheckTotals(batch *Batch, rules *RuleSet) []Anomaly {
	if len(rules.Totals) == 0 {
		return nil
	}

	byKey := make(map[SeriesKey]decimal.Decimal, len(batch.Records))
	periods := make(map[FiscalPeriod]bool)
	for _, rec := range batch.Records {
		byKey[rec.Key()] = rec.Amount
		periods[rec.Period] = true
	}

	var anomalies []Anomaly
	for _, rule := range rules.Totals {
		tolerance := decimal.Zero
		if rule.Tolerance != "" {
			tolerance, _ = decimal.NewFromString(rule.Tolerance)
		}

		for period := range periods {
			totalKey := SeriesKey{Period: period, Category: rule.Total, Kind: batch.Descriptor.Kind}
			total, ok := byKey[totalKey]
			if !ok {
				continue
			}

			sum := decimal.Zero
			complete := true
			for _, comp := range rule.Components {
				v, ok := byKey[SeriesKey{Period: period, Category: comp, Kind: batch.Descriptor.Kind}]
				if !ok {
					complete = false
					break
				}
				sum = sum.Add(v)
			}
			if !complete {
				continue
			}

			diff := sum.Sub(total).Abs()
			if diff.GreaterThan(tolerance) {
				anomalies = append(anomalies, Anomaly{
					Key:   totalKey,
					Delta: diff,
					Message: "components of " + rule.Total + " sum to " + sum.String() +
						", parsed total is " + total.String(),
				})
			}
		}
	}
	return anomalies
}
