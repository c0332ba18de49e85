package bank

import (
	"regexp"
	"strconv"
	"time"
)

// ruMonths maps genitive Russian month names to month numbers, as the
// portal renders dates ("5 марта 2024 г., 14:32").
var ruMonths = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

const ruMonthAlt = `января|февраля|марта|апреля|мая|июня|июля|августа|сентября|октября|ноября|декабря`

var (
	ruFullDateTime = regexp.MustCompile(`([0-9]{1,2})\s+(` + ruMonthAlt + `)\s+([0-9]{4})\s*(?:г\.?,?)?\s*,?\s*([0-9]{1,2}):([0-9]{2})`)
	ruShortDate    = regexp.MustCompile(`([0-9]{1,2})\s+(` + ruMonthAlt + `)`)
)

// ParseRuDateTime resolves a Russian-language portal date. When the full
// day/month-name/year/time pattern is present it returns the canonical
// instant, the matched fragment, and true. When only the shorter
// day+month fragment is present, that fragment is kept for display and no
// canonical date is produced (zero time, false).
func ParseRuDateTime(s string) (time.Time, string, bool) {
	if m := ruFullDateTime.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		hour, _ := strconv.Atoi(m[4])
		minute, _ := strconv.Atoi(m[5])
		month := ruMonths[m[2]]
		t := time.Date(year, month, day, hour, minute, 0, 0, time.Local)
		return t, ruFullDateTime.FindString(s), true
	}
	if m := ruShortDate.FindString(s); m != "" {
		return time.Time{}, m, false
	}
	return time.Time{}, "", false
}

// HasRuDateTime reports whether s contains the full datetime pattern.
// The detail extractor uses it to pick the datetime-bearing paragraph.
func HasRuDateTime(s string) bool {
	return ruFullDateTime.MatchString(s)
}

// HasRuDate reports whether s contains at least a day+month fragment.
func HasRuDate(s string) bool {
	return ruShortDate.MatchString(s)
}
