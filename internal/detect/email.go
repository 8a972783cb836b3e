package detect

import (
	"regexp"
	"strings"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// Email detects email addresses. Addresses are case-insensitive, so the
// normalized form is lowercased before hashing.
type Email struct{}

func (Email) Type() domain.FindingType { return domain.FindingEmail }

func (Email) Detect(line string) []Match {
	var out []Match
	for _, loc := range emailPattern.FindAllStringIndex(line, -1) {
		value := line[loc[0]:loc[1]]
		out = append(out, Match{
			Type:       domain.FindingEmail,
			Value:      value,
			Normalized: strings.ToLower(value),
			Start:      loc[0],
			End:        loc[1],
			Confidence: domain.ConfidenceHigh,
		})
	}
	return out
}
