package fiscalpdf

import "testing"

func TestParseFiscalPeriod(t *testing.T) {
	tests := []struct {
		label    string
		expected FiscalPeriod
	}{
		{"FY2022", FiscalPeriod{Year: 2022, Granularity: Annual}},
		{"FY22", FiscalPeriod{Year: 2022, Granularity: Annual}},
		{"FY 2022", FiscalPeriod{Year: 2022, Granularity: Annual}},
		{"FY2023 Q2", FiscalPeriod{Year: 2023, Granularity: Quarterly, Index: 2}},
		{"Q3 FY22", FiscalPeriod{Year: 2022, Granularity: Quarterly, Index: 3}},
		{"FY2023 M07", FiscalPeriod{Year: 2023, Granularity: Monthly, Index: 7}},
		{"FY2023 M1", FiscalPeriod{Year: 2023, Granularity: Monthly, Index: 1}},
		{"Jul FY2023", FiscalPeriod{Year: 2023, Granularity: Monthly, Index: 1}},
		{"January FY23", FiscalPeriod{Year: 2023, Granularity: Monthly, Index: 7}},
		{"Dec. FY2022", FiscalPeriod{Year: 2022, Granularity: Monthly, Index: 6}},
		{"  FY2022  ", FiscalPeriod{Year: 2022, Granularity: Annual}},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseFiscalPeriod(tt.label)
			if err != nil {
				t.Fatalf("ParseFiscalPeriod(%q) error: %v", tt.label, err)
			}
			if got != tt.expected {
				t.Errorf("ParseFiscalPeriod(%q) = %+v, want %+v", tt.label, got, tt.expected)
			}
		})
	}
}

func TestParseFiscalPeriod_Invalid(t *testing.T) {
	labels := []string{
		"",
		"Revenue",
		"FY2023 M13",
		"FY2023 Q5",
		"Smarch FY2023",
		"2023",
	}
	for _, label := range labels {
		if _, err := ParseFiscalPeriod(label); err == nil {
			t.Errorf("ParseFiscalPeriod(%q) should fail", label)
		}
	}
}

func TestFiscalPeriod_StringRoundTrip(t *testing.T) {
	periods := []FiscalPeriod{
		{Year: 2022, Granularity: Annual},
		{Year: 2023, Granularity: Quarterly, Index: 4},
		{Year: 2023, Granularity: Monthly, Index: 7},
	}
	for _, p := range periods {
		got, err := ParseFiscalPeriod(p.String())
		if err != nil {
			t.Fatalf("ParseFiscalPeriod(%q) error: %v", p.String(), err)
		}
		if got != p {
			t.Errorf("round trip of %+v via %q = %+v", p, p.String(), got)
		}
	}
}

func TestFiscalPeriod_Valid(t *testing.T) {
	tests := []struct {
		period FiscalPeriod
		valid  bool
	}{
		{FiscalPeriod{Year: 2022, Granularity: Annual}, true},
		{FiscalPeriod{Year: 2022, Granularity: Annual, Index: 1}, false},
		{FiscalPeriod{Year: 2022, Granularity: Quarterly, Index: 4}, true},
		{FiscalPeriod{Year: 2022, Granularity: Quarterly, Index: 0}, false},
		{FiscalPeriod{Year: 2022, Granularity: Monthly, Index: 12}, true},
		{FiscalPeriod{Year: 2022, Granularity: Monthly, Index: 13}, false},
		{FiscalPeriod{Year: 2022, Granularity: "weekly", Index: 1}, false},
	}
	for _, tt := range tests {
		if got := tt.period.Valid(); got != tt.valid {
			t.Errorf("%+v Valid() = %v, want %v", tt.period, got, tt.valid)
		}
	}
}

func TestFiscalCalendarConversion(t *testing.T) {
	// Fiscal years start in July: fiscal month 1 is July, 7 is January.
	tests := []struct {
		fiscal   int
		calendar int
	}{
		{1, 7},
		{6, 12},
		{7, 1},
		{12, 6},
	}
	for _, tt := range tests {
		p := FiscalPeriod{Year: 2023, Granularity: Monthly, Index: tt.fiscal}
		if got := p.CalendarMonth(); got != tt.calendar {
			t.Errorf("fiscal month %d CalendarMonth() = %d, want %d", tt.fiscal, got, tt.calendar)
		}
		if got := FiscalMonth(tt.calendar); got != tt.fiscal {
			t.Errorf("FiscalMonth(%d) = %d, want %d", tt.calendar, got, tt.fiscal)
		}
	}

	annual := FiscalPeriod{Year: 2023, Granularity: Annual}
	if annual.CalendarMonth() != 0 {
		t.Errorf("annual period should have no calendar month")
	}
}

func TestParseGranularity(t *testing.T) {
	for _, s := range []string{"annual", "Quarterly", " MONTHLY "} {
		if _, err := ParseGranularity(s); err != nil {
			t.Errorf("ParseGranularity(%q) error: %v", s, err)
		}
	}
	if _, err := ParseGranularity("weekly"); err == nil {
		t.Error("ParseGranularity should reject unknown granularity")
	}
}
