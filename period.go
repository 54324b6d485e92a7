package fiscalpdf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Granularity is the time resolution of a fiscal period.
type Granularity string

const (
	Annual    Granularity = "annual"
	Quarterly Granularity = "quarterly"
	Monthly   Granularity = "monthly"
)

// ParseGranularity parses a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Annual:
		return Annual, nil
	case Quarterly:
		return Quarterly, nil
	case Monthly:
		return Monthly, nil
	}
	return "", errors.Errorf("unknown granularity %q", s)
}

// FiscalPeriod identifies a year, quarter, or month within the government
// fiscal calendar (fiscal years start in July). Index is 0 for annual
// periods, 1-4 for quarters, and 1-12 for fiscal months (1 = July).
type FiscalPeriod struct {
	Year        int
	Granularity Granularity
	Index       int
}

// String renders the period in the canonical label form accepted by
// ParseFiscalPeriod: "FY2023", "FY2023 Q2", "FY2023 M07".
func (p FiscalPeriod) String() string {
	switch p.Granularity {
	case Quarterly:
		return fmt.Sprintf("FY%d Q%d", p.Year, p.Index)
	case Monthly:
		return fmt.Sprintf("FY%d M%02d", p.Year, p.Index)
	default:
		return fmt.Sprintf("FY%d", p.Year)
	}
}

// Valid reports whether the period's index is consistent with its
// granularity.
func (p FiscalPeriod) Valid() bool {
	switch p.Granularity {
	case Annual:
		return p.Index == 0
	case Quarterly:
		return p.Index >= 1 && p.Index <= 4
	case Monthly:
		return p.Index >= 1 && p.Index <= 12
	}
	return false
}

// CalendarMonth returns the calendar month (1-12) for a monthly period.
// Fiscal month 1 is July, fiscal month 7 is January.
func (p FiscalPeriod) CalendarMonth() int {
	if p.Granularity != Monthly {
		return 0
	}
	if p.Index <= 6 {
		return p.Index + 6
	}
	return p.Index - 6
}

// FiscalMonth converts a calendar month (1-12) to its fiscal month index.
func FiscalMonth(calendarMonth int) int {
	if calendarMonth >= 7 {
		return calendarMonth - 6
	}
	return calendarMonth + 6
}

var (
	fyPattern      = regexp.MustCompile(`^FY\s*(\d{2}|\d{4})$`)
	fyQPattern     = regexp.MustCompile(`^FY\s*(\d{2}|\d{4})\s+Q([1-4])$`)
	qFYPattern     = regexp.MustCompile(`^Q([1-4])\s+FY\s*(\d{2}|\d{4})$`)
	fyMPattern     = regexp.MustCompile(`^FY\s*(\d{2}|\d{4})\s+M(\d{1,2})$`)
	monthFYPattern = regexp.MustCompile(`^([A-Za-z]{3,9})\.?\s+FY\s*(\d{2}|\d{4})$`)
)

var monthNames = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// ParseFiscalPeriod parses a source column or row label into a fiscal period.
// Accepted forms include "FY2022", "FY22", "FY2022 Q3", "Q3 FY22",
// "FY2023 M07", and "Jul FY2023". Two-digit years are expanded into the
// 2000s, matching the vintages these reports cover.
func ParseFiscalPeriod(label string) (FiscalPeriod, error) {
	s := strings.TrimSpace(label)

	if m := fyPattern.FindStringSubmatch(s); m != nil {
		return FiscalPeriod{Year: expandYear(m[1]), Granularity: Annual}, nil
	}
	if m := fyQPattern.FindStringSubmatch(s); m != nil {
		q, _ := strconv.Atoi(m[2])
		return FiscalPeriod{Year: expandYear(m[1]), Granularity: Quarterly, Index: q}, nil
	}
	if m := qFYPattern.FindStringSubmatch(s); m != nil {
		q, _ := strconv.Atoi(m[1])
		return FiscalPeriod{Year: expandYear(m[2]), Granularity: Quarterly, Index: q}, nil
	}
	if m := fyMPattern.FindStringSubmatch(s); m != nil {
		idx, _ := strconv.Atoi(m[2])
		p := FiscalPeriod{Year: expandYear(m[1]), Granularity: Monthly, Index: idx}
		if !p.Valid() {
			return FiscalPeriod{}, errors.Errorf("fiscal month %d out of range in %q", idx, label)
		}
		return p, nil
	}
	if m := monthFYPattern.FindStringSubmatch(s); m != nil {
		cal, ok := monthNames[strings.ToLower(m[1])]
		if !ok {
			return FiscalPeriod{}, errors.Errorf("unknown month name %q in %q", m[1], label)
		}
		return FiscalPeriod{
			Year:        expandYear(m[2]),
			Granularity: Monthly,
			Index:       FiscalMonth(cal),
		}, nil
	}

	return FiscalPeriod{}, errors.Errorf("unrecognized fiscal period label %q", label)
}

func expandYear(s string) int {
	y, _ := strconv.Atoi(s)
	if y < 100 {
		y += 2000
	}
	return y
}
