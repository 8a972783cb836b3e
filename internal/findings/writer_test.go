package findings

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/design-smith/AWSDataScanner/internal/adapters/memory"
	"github.com/design-smith/AWSDataScanner/internal/detect"
	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/scan"
)

func TestHashValue(t *testing.T) {
	h := HashValue("123456789")
	assert.Len(t, h, 64)
	assert.Equal(t, strings.ToLower(h), h)
	// Stable across calls: this is the dedup key.
	assert.Equal(t, h, HashValue("123456789"))
	assert.NotEqual(t, h, HashValue("123456780"))
}

func TestWritePersistsHashedFindings(t *testing.T) {
	store := memory.NewStore()
	w := NewWriter(store)
	obj := domain.JobObject{ID: 7, JobID: "job-1", Key: "users.csv"}

	line := "contact: alice@example.com"
	matches := []scan.LineMatch{{
		Match: detect.Match{
			Type:       domain.FindingEmail,
			Value:      "alice@example.com",
			Normalized: "alice@example.com",
			Start:      9,
			End:        26,
			Confidence: domain.ConfidenceMedium,
		},
		LineNumber: 3,
		Line:       line,
	}}

	inserted, err := w.Write(context.Background(), obj, matches)
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	rows, err := store.ListFindingsByObject(context.Background(), obj.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	f := rows[0]
	assert.Equal(t, domain.FindingEmail, f.Type)
	assert.Equal(t, HashValue("alice@example.com"), f.ValueHash)
	assert.Equal(t, 3, f.LineNumber)
	assert.Equal(t, 9, f.ColumnStart)
	assert.Equal(t, 26, f.ColumnEnd)
	assert.Equal(t, line, f.Context)
	// The raw value is hashed, never stored.
	assert.NotContains(t, f.ValueHash, "alice")

	// Writing the same matches again is absorbed by the natural key.
	inserted, err = w.Write(context.Background(), obj, matches)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestWriteEmptyMatches(t *testing.T) {
	w := NewWriter(memory.NewStore())
	inserted, err := w.Write(context.Background(), domain.JobObject{ID: 1}, nil)
	require.NoError(t, err)
	assert.Zero(t, inserted)
}

func TestSnippetBoundsContext(t *testing.T) {
	long := strings.Repeat("x", 300) + "MATCH" + strings.Repeat("y", 300)
	start := 300
	end := 305

	s := snippet(long, start, end)
	assert.Contains(t, s, "MATCH")
	assert.LessOrEqual(t, len(s), maxContextLen+3)
	// Only the window around the match survives.
	assert.Equal(t, strings.Repeat("x", 50)+"MATCH"+strings.Repeat("y", 50), s)

	// Matches at the line edge clamp instead of slicing out of range.
	assert.Equal(t, "abc", snippet("abc", 0, 3))
}
