package detect

import (
	"regexp"
	"strings"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

// ssnPattern matches the 3-2-4 digit grouping with optional dash or space
// separators.
var ssnPattern = regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`)

// SSN detects US Social Security Numbers. Candidates are normalized to nine
// digits; area numbers that the SSA never issues (000, 666, 9xx) are
// rejected to cut false positives.
type SSN struct{}

func (SSN) Type() domain.FindingType { return domain.FindingSSN }

func (SSN) Detect(line string) []Match {
	var out []Match
	for _, loc := range ssnPattern.FindAllStringIndex(line, -1) {
		value := line[loc[0]:loc[1]]
		normalized := stripSeparators(value)
		if len(normalized) != 9 {
			continue
		}
		if strings.HasPrefix(normalized, "000") ||
			strings.HasPrefix(normalized, "666") ||
			strings.HasPrefix(normalized, "9") {
			continue
		}
		out = append(out, Match{
			Type:       domain.FindingSSN,
			Value:      value,
			Normalized: normalized,
			Start:      loc[0],
			End:        loc[1],
			Confidence: domain.ConfidenceHigh,
		})
	}
	return out
}

var separatorStripper = strings.NewReplacer("-", "", " ", "", "\t", "")

func stripSeparators(s string) string {
	return separatorStripper.Replace(s)
}
