package fiscalpdf

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// PeriodAmount is one amount cell bound to the fiscal period its header
// column named (wide-format tables pivot periods across columns).
type PeriodAmount struct {
	Period FiscalPeriod
	Raw    string
}

// RowMapping is the schema mapper's output for one data row: raw values
// keyed by target field, plus the per-period amount columns for wide-format
// tables. A row whose category matched no alias is emitted as unmapped so it
// surfaces for rule-set maintenance rather than vanishing silently.
type RowMapping struct {
	SourceRow   int
	Fields      map[string]string
	Amounts     []PeriodAmount
	Category    string // canonical category slug; empty when unmapped
	RawCategory string
	Unmapped    bool
}

// MapWarning records a non-fatal mapping issue: a dropped column or an
// unmapped category.
type MapWarning struct {
	Row     int
	Col     int
	Label   string
	Message string
}

func (w MapWarning) String() string {
	return fmt.Sprintf("row %d col %d (%q): %s", w.Row, w.Col, w.Label, w.Message)
}

// MappedTable is a fully mapped grid: one RowMapping per surviving data row
// plus the warnings accumulated while mapping.
type MappedTable struct {
	Descriptor ReportDescriptor
	Page       int
	Rows       []RowMapping
	Warnings   []MapWarning
}

// columnBinding is the resolved meaning of one grid column.
type columnBinding struct {
	field  string
	period FiscalPeriod // set when the header itself names a fiscal period
	pivot  bool
	drop   bool
}

// MapGrid translates a populated grid into target-field mappings using the
// rule set active for the report's kind and fiscal year. Header labels are
// matched exact first, then normalized, then by fuzzy containment as a last
// resort; a header that matches no column rule but parses as a fiscal period
// labels a pivoted amount column. Unmatched columns are dropped with a
// recorded warning. Blank category cells (including merged-cell shadows)
// inherit the nearest non-blank category above them in the same table.
func MapGrid(grid *Grid, desc ReportDescriptor, page int, rules *RuleSet) *MappedTable {
	out := &MappedTable{Descriptor: desc, Page: page}
	if grid.NumRows() < 2 || grid.NumCols() == 0 {
		return out
	}

	bindings := bindColumns(grid, rules, out)

	categoryCol := -1
	for c, b := range bindings {
		if !b.drop && !b.pivot && b.field == FieldCategory {
			categoryCol = c
			break
		}
	}

	var lastCanonical, lastRaw string
	var lastUnmapped bool

	for r := 1; r < grid.NumRows(); r++ {
		mapping := RowMapping{
			SourceRow: r,
			Fields:    map[string]string{},
		}

		for c, b := range bindings {
			if b.drop {
				continue
			}
			text := strings.TrimSpace(grid.Cell(r, c).Text)
			if b.pivot {
				if text != "" {
					mapping.Amounts = append(mapping.Amounts, PeriodAmount{Period: b.period, Raw: text})
				}
				continue
			}
			if text != "" {
				mapping.Fields[b.field] = text
			}
		}

		// Fill down: a blank category cell inherits the nearest non-blank
		// category above it within the same table.
		raw := mapping.Fields[FieldCategory]
		if raw == "" && categoryCol >= 0 {
			raw = lastRaw
			if raw != "" {
				mapping.Fields[FieldCategory] = raw
				mapping.Category = lastCanonical
				mapping.RawCategory = lastRaw
				mapping.Unmapped = lastUnmapped
			}
		} else if raw != "" {
			canonical, matched := matchCategory(raw, rules)
			mapping.RawCategory = raw
			if matched {
				mapping.Category = canonical
			} else {
				mapping.Unmapped = true
				out.Warnings = append(out.Warnings, MapWarning{
					Row: r, Col: categoryCol, Label: raw,
					Message: "category matched no alias; emitted as unmapped",
				})
			}
			lastCanonical, lastRaw, lastUnmapped = mapping.Category, raw, mapping.Unmapped
		}

		// Rows carrying no values at all are layout artifacts, not data.
		if len(mapping.Amounts) == 0 && mapping.Fields[FieldAmount] == "" {
			continue
		}

		out.Rows = append(out.Rows, mapping)
	}

	return out
}

// bindColumns resolves the header row into column bindings.
func bindColumns(grid *Grid, rules *RuleSet, out *MappedTable) []columnBinding {
	bindings := make([]columnBinding, grid.NumCols())
	for c := 0; c < grid.NumCols(); c++ {
		label := strings.TrimSpace(grid.Cell(0, c).Text)
		if label == "" {
			bindings[c] = columnBinding{drop: true}
			continue
		}

		if field, ok := matchColumn(label, rules); ok {
			bindings[c] = columnBinding{field: field}
			continue
		}

		if period, err := ParseFiscalPeriod(label); err == nil {
			bindings[c] = columnBinding{period: period, pivot: true}
			continue
		}

		bindings[c] = columnBinding{drop: true}
		out.Warnings = append(out.Warnings, MapWarning{
			Row: 0, Col: c, Label: label,
			Message: "header matched no column rule; column dropped",
		})
	}
	return bindings
}

// matchColumn matches a header label against the rule set's column rules:
// exact, then normalized, then fuzzy containment.
func matchColumn(label string, rules *RuleSet) (string, bool) {
	for _, rule := range rules.Columns {
		if label == rule.Match {
			return rule.Field, true
		}
	}

	norm := normalizeLabel(label)
	for _, rule := range rules.Columns {
		if norm == normalizeLabel(rule.Match) {
			return rule.Field, true
		}
	}

	for _, rule := range rules.Columns {
		if fuzzyContains(norm, normalizeLabel(rule.Match)) {
			return rule.Field, true
		}
	}

	return "", false
}

// matchCategory matches raw category text against the category aliases,
// with the same escalation as column matching.
func matchCategory(raw string, rules *RuleSet) (string, bool) {
	for _, rule := range rules.Categories {
		if raw == rule.Match {
			return rule.Canonical, true
		}
	}

	norm := normalizeLabel(raw)
	for _, rule := range rules.Categories {
		if norm == normalizeLabel(rule.Match) {
			return rule.Canonical, true
		}
	}

	for _, rule := range rules.Categories {
		if fuzzyContains(norm, normalizeLabel(rule.Match)) {
			return rule.Canonical, true
		}
	}

	return "", false
}

// fuzzyContains is the last-resort label match: substring containment in
// either direction, then subsequence matching.
func fuzzyContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return fuzzy.Match(b, a)
}
