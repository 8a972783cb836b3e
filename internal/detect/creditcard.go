package detect

import (
	"regexp"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

// cardPattern matches the common 4-4-4-4 grouping with dash/space separators
// or a bare 15-16 digit run.
var cardPattern = regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b|\b\d{15,16}\b`)

// CreditCard detects payment card numbers. Every candidate must pass the
// Luhn mod-10 checksum; sequences that fail it are dropped rather than
// reported at lower confidence.
type CreditCard struct{}

func (CreditCard) Type() domain.FindingType { return domain.FindingCreditCard }

func (CreditCard) Detect(line string) []Match {
	var out []Match
	for _, loc := range cardPattern.FindAllStringIndex(line, -1) {
		value := line[loc[0]:loc[1]]
		normalized := stripSeparators(value)
		if !LuhnValid(normalized) {
			continue
		}
		out = append(out, Match{
			Type:       domain.FindingCreditCard,
			Value:      value,
			Normalized: normalized,
			Start:      loc[0],
			End:        loc[1],
			Confidence: domain.ConfidenceHigh,
		})
	}
	return out
}

// LuhnValid reports whether digits (13-19 of them) pass the Luhn mod-10
// weighted checksum. Non-digit input fails.
func LuhnValid(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
