package bank

import (
	"testing"
	"time"
)

func TestParseRuDateTime_FullPattern(t *testing.T) {
	got, display, ok := ParseRuDateTime("5 марта 2024 г., 14:32")
	if !ok {
		t.Fatal("expected canonical parse")
	}
	want := time.Date(2024, time.March, 5, 14, 32, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("time = %v, want %v", got, want)
	}
	if display != "5 марта 2024 г., 14:32" {
		t.Errorf("display = %q", display)
	}
}

func TestParseRuDateTime_ShortFragmentIsDisplayOnly(t *testing.T) {
	// WHAT: a day+month fragment with no year/time yields no canonical date.
	// WHY: guessing the year would silently mis-date December operations
	// scraped in January.
	got, display, ok := ParseRuDateTime("5 марта")
	if ok {
		t.Fatalf("expected no canonical date, got %v", got)
	}
	if display != "5 марта" {
		t.Errorf("display = %q, want %q", display, "5 марта")
	}
}

func TestParseRuDateTime_Variants(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"1 января 2025, 00:05", time.Date(2025, time.January, 1, 0, 5, 0, 0, time.Local)},
		{"Оплата 31 декабря 2024 г., 23:59, завершена", time.Date(2024, time.December, 31, 23, 59, 0, 0, time.Local)},
	}
	for _, c := range cases {
		got, _, ok := ParseRuDateTime(c.in)
		if !ok || !got.Equal(c.want) {
			t.Errorf("ParseRuDateTime(%q) = %v ok=%v, want %v", c.in, got, ok, c.want)
		}
	}
}

func TestParseRuDateTime_NoDate(t *testing.T) {
	if _, display, ok := ParseRuDateTime("Супермаркеты"); ok || display != "" {
		t.Errorf("expected no match, got display=%q ok=%v", display, ok)
	}
}
