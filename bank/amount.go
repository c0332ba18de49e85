package bank

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// CurrencyMarker is the rouble sign used to spot amount-bearing text.
const CurrencyMarker = "₽"

// spaceStripper removes regular and typographic spaces that the portal
// inserts as thousands separators.
var spaceStripper = strings.NewReplacer(
	" ", "",
	" ", "", // no-break space
	" ", "", // figure space
	" ", "", // narrow no-break space
	"\uFEFF", "", // BOM, seen in copied text
	"\t", "",
)

// minusGlyphs are the sign markers the portal renders for debits. The
// ASCII hyphen, the true minus sign, and the en dash are all treated as
// negative.
const minusGlyphs = "-−–"

var amountPattern = regexp.MustCompile(`([0-9]+)(?:[.,]([0-9]{1,2}))?`)

// ParseAmount reads a signed decimal amount from portal text such as
// "−1 234,56 ₽". Whitespace is stripped, a minus-like glyph directly
// before the number means negative, the fraction is optional (at most two
// digits). A glyph elsewhere in the text (a hyphenated account or merchant
// name) is not a sign. Text with no digits parses to zero.
func ParseAmount(s string) decimal.Decimal {
	s = spaceStripper.Replace(s)

	m := amountPattern.FindStringSubmatchIndex(s)
	if m == nil {
		return decimal.Zero
	}

	numeric := s[m[2]:m[3]]
	if m[4] >= 0 {
		numeric += "." + s[m[4]:m[5]]
	}
	d, err := decimal.NewFromString(numeric)
	if err != nil {
		return decimal.Zero
	}
	if r, _ := utf8.DecodeLastRuneInString(s[:m[0]]); strings.ContainsRune(minusGlyphs, r) {
		d = d.Neg()
	}
	return d
}
