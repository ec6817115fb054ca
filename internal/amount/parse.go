package amount

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numericToken matches every maximal run of digits and points once comma
// separators have been rewritten to points.
var numericToken = regexp.MustCompile(`[\d.]+`)

// ParseResult is the outcome of normalizing free-form note text.
type ParseResult struct {
	Amounts  []Amount
	Rejected []string
}

// ParseList extracts every numeric token from free-form text and converts it
// to an Amount, preserving input order. Comma decimal separators become
// points first, so "12,50" reads as 12.50. Tokens that do not form a valid
// number ("1.234.56", ".") are dropped and reported in Rejected.
func ParseList(raw string) ParseResult {
	text := strings.ReplaceAll(raw, ",", ".")
	tokens := numericToken.FindAllString(text, -1)

	res := ParseResult{Amounts: make([]Amount, 0, len(tokens))}
	for _, tok := range tokens {
		d, err := decimal.NewFromString(tok)
		if err != nil {
			res.Rejected = append(res.Rejected, tok)
			continue
		}
		a, err := FromDecimal(d)
		if err != nil {
			res.Rejected = append(res.Rejected, tok)
			continue
		}
		res.Amounts = append(res.Amounts, a)
	}
	return res
}
