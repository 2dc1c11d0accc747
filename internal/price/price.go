// Package price turns free-form price text such as "1.299,99 €" or
// "USD 1,299.99" into a canonical amount and currency.
package price

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/unicode/norm"
)

// Symbols is the fixed set of currency symbols recognized as a currency token.
const Symbols = "$€£¥₹₩₽₺₪₫฿₱₴₦"

// NumberPattern matches one numeric token: digit groups joined by comma,
// period or apostrophe, or by a space when the next group has exactly three
// digits ("1 299,99"). Input is expected to be whitespace-collapsed.
const NumberPattern = `\d+(?:[.,'’]\d+| \d{3}\b)*`

var (
	numberRe   = regexp.MustCompile(NumberPattern)
	currencyRe = regexp.MustCompile(`[A-Z]{3}|[` + Symbols + `]`)
)

// Candidate is a normalized price. Amount is always positive.
type Candidate struct {
	Currency string
	Amount   decimal.Decimal
	// Fractional reports whether a decimal separator was identified.
	Fractional bool
	Display    string
}

// Normalize parses raw into a Candidate. The boolean is false when raw holds
// no usable positive number.
func Normalize(raw string) (Candidate, bool) {
	text := strings.Join(strings.Fields(norm.NFKC.String(raw)), " ")
	if text == "" {
		return Candidate{}, false
	}
	cur := DetectCurrency(text)

	token := numberRe.FindString(text)
	if token == "" {
		return Candidate{}, false
	}
	token = strings.NewReplacer(" ", "", "'", "", "’", "").Replace(token)

	digits, fractional := resolveSeparators(token)
	amount, err := decimal.NewFromString(digits)
	if err != nil || !amount.IsPositive() {
		return Candidate{}, false
	}

	display := amount.String()
	if fractional {
		display = amount.StringFixed(2)
	}
	if cur != "" {
		display = cur + " " + display
	}
	return Candidate{Currency: cur, Amount: amount, Fractional: fractional, Display: display}, true
}

// DetectCurrency returns the first currency token in text: a symbol from
// Symbols or a known ISO 4217 code standing on its own. It returns "" when
// none is present.
func DetectCurrency(text string) string {
	for _, loc := range currencyRe.FindAllStringIndex(text, -1) {
		tok := text[loc[0]:loc[1]]
		if strings.ContainsAny(tok, Symbols) {
			return tok
		}
		if loc[0] > 0 && isASCIILetter(text[loc[0]-1]) {
			continue
		}
		if loc[1] < len(text) && isASCIILetter(text[loc[1]]) {
			continue
		}
		if _, err := currency.ParseISO(tok); err == nil {
			return tok
		}
	}
	return ""
}

// resolveSeparators decides which of '.' and ',' is the decimal separator
// and returns a plain decimal string. With both present the later one wins;
// with only one kind present it is decimal only when exactly two digits
// follow its last occurrence. Three-digit fractions ("1,234" meaning one
// point two three four) are read as grouping.
func resolveSeparators(token string) (string, bool) {
	lastDot := strings.LastIndexByte(token, '.')
	lastComma := strings.LastIndexByte(token, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			return strings.ReplaceAll(token, ",", ""), true
		}
		return strings.Replace(strings.ReplaceAll(token, ".", ""), ",", ".", 1), true
	case lastComma >= 0:
		return splitOnLast(token, ',', lastComma)
	case lastDot >= 0:
		return splitOnLast(token, '.', lastDot)
	default:
		return token, false
	}
}

func splitOnLast(token string, sep byte, last int) (string, bool) {
	if len(token)-last-1 != 2 {
		return strings.ReplaceAll(token, string(sep), ""), false
	}
	whole := strings.ReplaceAll(token[:last], string(sep), "")
	return whole + "." + token[last+1:], true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
