package util

import (
	"testing"
	"time"
)

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-10-10",
		"2024-10-10T10:10:10Z",
		"2024-10-10 10:10:10",
		"2024/10/10",
		"10/10/2024",
		"20241010",
		" 2024-10-10 ",
	} {
		got, ok := ParseDate(s)
		if !ok {
			t.Fatalf("expected ok for %q", s)
		}
		if !got.Equal(want) {
			t.Fatalf("%q: unexpected time %v", s, got)
		}
	}
}

func TestParseDateMonthOnly(t *testing.T) {
	got, ok := ParseDate("2024-03")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseDateInvalid(t *testing.T) {
	for _, s := range []string{"", "yesterday", "2024-13-40"} {
		if _, ok := ParseDate(s); ok {
			t.Fatalf("expected failure for %q", s)
		}
	}
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := ParseDateDefault("", def); !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestMonthHelpers(t *testing.T) {
	d := time.Date(2024, 2, 17, 15, 0, 0, 0, time.UTC)
	if got := MonthStart(d); !got.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("month start %v", got)
	}
	if got := MonthEnd(d); !got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("month end %v", got)
	}
	if got := AddMonths(d, 11); !got.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("add months %v", got)
	}
	if got := MonthsBetween(time.Date(2023, 11, 1, 0, 0, 0, 0, time.UTC), d); got != 3 {
		t.Fatalf("months between %d", got)
	}
	if got := DaysBetween(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)); got != 31 {
		t.Fatalf("days between %d", got)
	}
	if RunStamp(d) != "20240217" || ArchiveStamp(d) != "2024-02-17" || FormatMonth(d) != "2024-02-01" {
		t.Fatalf("unexpected stamps")
	}
}
