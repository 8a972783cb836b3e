package detect

import (
	"regexp"
	"strings"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

var phonePattern = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)

// PhoneUS detects US phone numbers. Candidates are normalized to ten digits
// (country code stripped); numbers with a 000 or 555 area code are rejected.
type PhoneUS struct{}

func (PhoneUS) Type() domain.FindingType { return domain.FindingPhoneUS }

func (PhoneUS) Detect(line string) []Match {
	var out []Match
	for _, loc := range phonePattern.FindAllStringIndex(line, -1) {
		value := line[loc[0]:loc[1]]
		normalized := normalizePhone(value)
		if len(normalized) != 10 {
			continue
		}
		if strings.HasPrefix(normalized, "000") || strings.HasPrefix(normalized, "555") {
			continue
		}
		out = append(out, Match{
			Type:       domain.FindingPhoneUS,
			Value:      value,
			Normalized: normalized,
			Start:      loc[0],
			End:        loc[1],
			Confidence: domain.ConfidenceHigh,
		})
	}
	return out
}

func normalizePhone(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}
