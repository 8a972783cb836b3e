// Package detect holds the rule-based PII detectors. Each detector maps a
// single line of text to zero or more typed matches; detection is stateless
// and pure, and detectors never see more than one line at a time.
//
// Column positions are 0-based byte offsets within the line. Detectors may
// overlap: a value that matches both the email and phone patterns is
// reported twice, once per detector, and deduplication happens later at the
// persistence layer.
package detect

import "github.com/design-smith/AWSDataScanner/internal/domain"

// Match is one hit on a line. Value is the literal matched text; Normalized
// is the canonical form (separators stripped, case folded) used for hashing
// so that formatting variants of the same value dedupe together.
type Match struct {
	Type       domain.FindingType
	Value      string
	Normalized string
	Start      int
	End        int
	Confidence domain.Confidence
}

// Detector recognizes one kind of sensitive value.
type Detector interface {
	Type() domain.FindingType
	Detect(line string) []Match
}

// All returns the full production detector set.
func All() []Detector {
	return []Detector{
		SSN{},
		CreditCard{},
		AWSAccessKey{},
		AWSSecretKey{},
		Email{},
		PhoneUS{},
	}
}

// Set composes detectors and runs them over lines in order.
type Set struct {
	detectors []Detector
}

func NewSet(detectors ...Detector) *Set {
	if len(detectors) == 0 {
		detectors = All()
	}
	return &Set{detectors: detectors}
}

// ScanLine runs every detector over the line and concatenates their matches
// in detector order.
func (s *Set) ScanLine(line string) []Match {
	var out []Match
	for _, d := range s.detectors {
		out = append(out, d.Detect(line)...)
	}
	return out
}
