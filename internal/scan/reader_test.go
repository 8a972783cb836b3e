package scan

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/design-smith/AWSDataScanner/internal/detect"
)

func readAll(t *testing.T, lr *LineReader) []string {
	t.Helper()
	var lines []string
	for {
		no, line, err := lr.Next()
		if err == io.EOF {
			return lines
		}
		require.NoError(t, err)
		require.Equal(t, len(lines)+1, no)
		lines = append(lines, line)
	}
}

func TestLineReader_BasicSplit(t *testing.T) {
	lr := NewLineReader(strings.NewReader("one\ntwo\nthree\n"), 4)
	assert.Equal(t, []string{"one", "two", "three"}, readAll(t, lr))
}

func TestLineReader_FinalLineWithoutNewline(t *testing.T) {
	lr := NewLineReader(strings.NewReader("alpha\nbeta"), 4)
	assert.Equal(t, []string{"alpha", "beta"}, readAll(t, lr))
}

func TestLineReader_EmptyInput(t *testing.T) {
	lr := NewLineReader(strings.NewReader(""), 8)
	assert.Empty(t, readAll(t, lr))
}

func TestLineReader_BlankLines(t *testing.T) {
	lr := NewLineReader(strings.NewReader("a\n\n\nb\n"), 2)
	assert.Equal(t, []string{"a", "", "", "b"}, readAll(t, lr))
}

func TestLineReader_CRLF(t *testing.T) {
	lr := NewLineReader(strings.NewReader("one\r\ntwo\r\n"), 3)
	assert.Equal(t, []string{"one", "two"}, readAll(t, lr))
}

// A line longer than the chunk must be carried across fills and delivered
// whole.
func TestLineReader_LineSpansChunks(t *testing.T) {
	long := strings.Repeat("x", 100)
	lr := NewLineReader(strings.NewReader(long+"\nshort\n"), 7)
	assert.Equal(t, []string{long, "short"}, readAll(t, lr))
}

// The boundary case the pipeline cares about: a detector match split by the
// chunk boundary must still be found once the reader reassembles the line.
func TestLineReader_MatchAcrossChunkBoundary(t *testing.T) {
	input := "prefix data jane.doe@example.com suffix\n"
	// Chunk size lands the split mid-way through the email address.
	chunk := strings.Index(input, "@") - 3
	require.Positive(t, chunk)

	lr := NewLineReader(strings.NewReader(input), chunk)
	lines := readAll(t, lr)
	require.Len(t, lines, 1)

	matches := detect.NewSet(detect.Email{}).ScanLine(lines[0])
	require.Len(t, matches, 1)
	assert.Equal(t, "jane.doe@example.com", matches[0].Value)
}

func TestLineReader_LineNumbersAcrossChunks(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("line payload with some width\n")
	}
	lr := NewLineReader(strings.NewReader(b.String()), 64)
	assert.Len(t, readAll(t, lr), 50)
}
