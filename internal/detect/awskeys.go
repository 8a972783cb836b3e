package detect

import (
	"regexp"

	"github.com/design-smith/AWSDataScanner/internal/domain"
)

var (
	accessKeyPattern = regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)
	// 40 characters of the secret-key alphabet. Deliberately loose, so hits
	// are reported at medium confidence after a character-mix check.
	secretKeyPattern = regexp.MustCompile(`\b[A-Za-z0-9/+=]{40}\b`)
)

// AWSAccessKey detects AWS access key IDs (AKIA-prefixed, 20 chars).
type AWSAccessKey struct{}

func (AWSAccessKey) Type() domain.FindingType { return domain.FindingAWSAccessKey }

func (AWSAccessKey) Detect(line string) []Match {
	var out []Match
	for _, loc := range accessKeyPattern.FindAllStringIndex(line, -1) {
		value := line[loc[0]:loc[1]]
		out = append(out, Match{
			Type:       domain.FindingAWSAccessKey,
			Value:      value,
			Normalized: value,
			Start:      loc[0],
			End:        loc[1],
			Confidence: domain.ConfidenceHigh,
		})
	}
	return out
}

// AWSSecretKey detects candidate AWS secret access keys. The pattern alone
// is too generic to trust, so a match must mix upper case, lower case and
// digits, and is still only reported at medium confidence.
type AWSSecretKey struct{}

func (AWSSecretKey) Type() domain.FindingType { return domain.FindingAWSSecretKey }

func (AWSSecretKey) Detect(line string) []Match {
	var out []Match
	for _, loc := range secretKeyPattern.FindAllStringIndex(line, -1) {
		value := line[loc[0]:loc[1]]
		if !hasMixedAlphabet(value) {
			continue
		}
		out = append(out, Match{
			Type:       domain.FindingAWSSecretKey,
			Value:      value,
			Normalized: value,
			Start:      loc[0],
			End:        loc[1],
			Confidence: domain.ConfidenceMedium,
		})
	}
	return out
}

func hasMixedAlphabet(s string) bool {
	var upper, lower, digit bool
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}
