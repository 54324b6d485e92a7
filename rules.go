package fiscalpdf

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Target fields a source column can map onto.
const (
	FieldCategory   = "category"
	FieldAmount     = "amount"
	FieldPeriod     = "period"
	FieldDepartment = "department"
)

var knownFields = map[string]bool{
	FieldCategory:   true,
	FieldAmount:     true,
	FieldPeriod:     true,
	FieldDepartment: true,
}

// Sign conventions a category can declare.
const (
	SignAny         = "any"
	SignNonNegative = "non-negative"
	SignNonPositive = "non-positive"
)

// ColumnRule maps a raw header label pattern onto a target field.
type ColumnRule struct {
	Match string `yaml:"match"`
	Field string `yaml:"field"`
}

// CategoryRule maps raw category text onto its canonical slug.
type CategoryRule struct {
	Match     string `yaml:"match"`
	Canonical string `yaml:"canonical"`
}

// TotalRule declares that a total category should equal the sum of its
// component categories within each period, up to a tolerance. Violations are
// reported as anomalies, not failures.
type TotalRule struct {
	Total      string   `yaml:"total"`
	Components []string `yaml:"components"`
	Tolerance  string   `yaml:"tolerance"`
}

// YearRange is the inclusive fiscal-year span a rule set covers.
type YearRange struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Contains reports whether the fiscal year falls inside the range. A zero To
// leaves the range open-ended.
func (r YearRange) Contains(year int) bool {
	if year < r.From {
		return false
	}
	return r.To == 0 || year <= r.To
}

// RuleSet is the versioned mapping reference data for one report kind over a
// span of fiscal years. Rule sets are human-edited YAML, loaded once per
// process, and read-only thereafter.
type RuleSet struct {
	Version     int               `yaml:"version"`
	Kind        ReportKind        `yaml:"kind"`
	FiscalYears YearRange         `yaml:"fiscal_years"`
	Columns     []ColumnRule      `yaml:"columns"`
	Categories  []CategoryRule    `yaml:"categories"`
	Display     map[string]string `yaml:"display"`
	Sign        map[string]string `yaml:"sign"`
	Totals      []TotalRule       `yaml:"totals"`
}

func (rs *RuleSet) validate() error {
	if rs.Kind == "" {
		return errors.New("rule set missing kind")
	}
	if _, err := ParseReportKind(string(rs.Kind)); err != nil {
		return err
	}
	if rs.FiscalYears.From == 0 {
		return errors.New("rule set missing fiscal_years.from")
	}
	for _, c := range rs.Columns {
		if !knownFields[c.Field] {
			return errors.Errorf("column rule %q maps to unknown field %q", c.Match, c.Field)
		}
	}
	for cat, sign := range rs.Sign {
		if sign != SignAny && sign != SignNonNegative && sign != SignNonPositive {
			return errors.Errorf("category %q has unknown sign convention %q", cat, sign)
		}
	}
	for _, t := range rs.Totals {
		if t.Tolerance != "" {
			if _, err := decimal.NewFromString(t.Tolerance); err != nil {
				return errors.Wrapf(err, "total rule %q has invalid tolerance", t.Total)
			}
		}
	}
	return nil
}

// SignFor returns the sign convention declared for a canonical category.
func (rs *RuleSet) SignFor(category string) string {
	if s, ok := rs.Sign[category]; ok {
		return s
	}
	return SignAny
}

// DisplayName returns the human-readable name for a canonical category,
// falling back to the slug itself.
func (rs *RuleSet) DisplayName(category string) string {
	if d, ok := rs.Display[category]; ok {
		return d
	}
	return category
}

// RuleBook holds every loaded rule set, looked up by report kind and fiscal
// year.
type RuleBook struct {
	sets []*RuleSet
}

// LoadRuleSets reads every .yaml/.yml file under dir into a rule book.
func LoadRuleSets(dir string) (*RuleBook, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read rules directory %s", dir)
	}

	book := &RuleBook{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read rule set %s", path)
		}
		rs, err := ParseRuleSet(data)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid rule set %s", path)
		}
		book.sets = append(book.sets, rs)
	}

	if len(book.sets) == 0 {
		return nil, errors.Errorf("no rule sets found in %s", dir)
	}
	return book, nil
}

// ParseRuleSet parses and validates one YAML rule set document.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, errors.Wrap(err, "failed to parse rule set YAML")
	}
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// NewRuleBook builds a rule book from in-memory rule sets. Used by tests and
// embedders that manage their own reference data.
func NewRuleBook(sets ...*RuleSet) (*RuleBook, error) {
	for _, rs := range sets {
		if err := rs.validate(); err != nil {
			return nil, err
		}
	}
	return &RuleBook{sets: sets}, nil
}

// Lookup returns the rule set active for a report kind and fiscal year. When
// overlapping rule sets match, the highest version wins.
func (b *RuleBook) Lookup(kind ReportKind, fiscalYear int) (*RuleSet, error) {
	var matches []*RuleSet
	for _, rs := range b.sets {
		if rs.Kind == kind && rs.FiscalYears.Contains(fiscalYear) {
			matches = append(matches, rs)
		}
	}
	if len(matches) == 0 {
		return nil, errors.Errorf("no rule set for kind %s fiscal year %d", kind, fiscalYear)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Version > matches[j].Version
	})
	return matches[0], nil
}

// normalizeLabel folds a raw label for matching: lowercase with punctuation
// and whitespace removed.
func normalizeLabel(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
