// Package findings canonicalizes detector matches into persisted finding
// rows. The raw matched value is hashed and discarded here; nothing
// downstream of this package ever sees it in cleartext.
package findings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/ports"
	"github.com/design-smith/AWSDataScanner/internal/scan"
)

const (
	// contextWindow is how many bytes of the line are kept on each side of
	// the match for triage.
	contextWindow = 50
	// maxContextLen hard-caps the stored snippet.
	maxContextLen = 200

	hashHexLen = sha256.Size * 2
)

// HashValue returns the lowercase SHA-256 hex digest of the normalized
// value: always exactly 64 characters.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Writer builds finding rows from matches and persists them. Insertion is
// idempotent through the natural uniqueness key, so writing the same scan
// result twice is a no-op, not an error.
type Writer struct {
	repo ports.FindingRepository
}

func NewWriter(repo ports.FindingRepository) *Writer {
	return &Writer{repo: repo}
}

// Write persists every match for the object, returning how many rows were
// newly inserted (duplicates from an earlier delivery are absorbed
// silently).
func (w *Writer) Write(ctx context.Context, obj domain.JobObject, matches []scan.LineMatch) (int, error) {
	if len(matches) == 0 {
		return 0, nil
	}
	rows := make([]domain.Finding, 0, len(matches))
	for _, m := range matches {
		h := HashValue(m.Normalized)
		if len(h) != hashHexLen {
			return 0, fmt.Errorf("value hash must be %d hex chars, got %d", hashHexLen, len(h))
		}
		rows = append(rows, domain.Finding{
			ObjectID:    obj.ID,
			JobID:       obj.JobID,
			Type:        m.Type,
			ValueHash:   h,
			LineNumber:  m.LineNumber,
			ColumnStart: m.Start,
			ColumnEnd:   m.End,
			Context:     snippet(m.Line, m.Start, m.End),
			Confidence:  m.Confidence,
			DetectedAt:  time.Now().UTC(),
		})
	}
	return w.repo.InsertFindings(ctx, rows)
}

// snippet bounds the stored excerpt to a window around the match so the
// context column never leaks more of the line than triage needs.
func snippet(line string, start, end int) string {
	lo := start - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + contextWindow
	if hi > len(line) {
		hi = len(line)
	}
	s := line[lo:hi]
	if len(s) > maxContextLen {
		s = s[:maxContextLen] + "..."
	}
	return s
}
