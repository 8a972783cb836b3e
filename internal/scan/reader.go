// Package scan streams objects from bucket storage as logical lines and runs
// the detector set over them.
package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is how much of the object body is pulled per read.
const DefaultChunkSize = 10 * 1024 * 1024

// ErrObjectTooLarge marks an object whose size exceeds the configured scan
// limit. The object fails with this distinct error instead of being
// streamed, bounding worst-case memory and time.
var ErrObjectTooLarge = errors.New("object exceeds maximum scan size")

// ErrUnsupportedContent marks an object excluded by the text-content policy
// (binary or otherwise not line-oriented text).
var ErrUnsupportedContent = errors.New("object is not line-oriented text")

// LineReader reassembles logical lines from a stream read in fixed-size
// chunks. A partial line at the tail of one chunk is buffered and prefixed
// to the next, so a line spanning a chunk boundary is still delivered
// whole. The sequence is lazy, finite and non-restartable.
type LineReader struct {
	r      io.Reader
	chunk  []byte
	carry  []byte
	queue  [][]byte
	lineNo int
	eof    bool
}

func NewLineReader(r io.Reader, chunkSize int) *LineReader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &LineReader{r: r, chunk: make([]byte, chunkSize)}
}

// Next returns the next line and its 1-based line number. io.EOF signals a
// clean end of the stream; any other error is a read failure from the
// underlying stream.
func (lr *LineReader) Next() (lineNo int, line string, err error) {
	for len(lr.queue) == 0 {
		if lr.eof {
			return 0, "", io.EOF
		}
		if err := lr.fill(); err != nil {
			return 0, "", err
		}
	}
	raw := lr.queue[0]
	lr.queue = lr.queue[1:]
	lr.lineNo++
	return lr.lineNo, string(trimCR(raw)), nil
}

// fill reads one chunk and splits out the complete lines, carrying any
// trailing partial line forward.
func (lr *LineReader) fill() error {
	n, err := io.ReadFull(lr.r, lr.chunk)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		lr.eof = true
	} else if err != nil {
		return fmt.Errorf("read chunk: %w", err)
	}

	data := lr.chunk[:n]
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		full := append(lr.carry, data[:i]...)
		lr.carry = nil
		lr.queue = append(lr.queue, full)
		data = data[i+1:]
	}
	if len(data) > 0 {
		lr.carry = append(lr.carry, data...)
	}

	if lr.eof && len(lr.carry) > 0 {
		// Final line without a trailing newline.
		lr.queue = append(lr.queue, lr.carry)
		lr.carry = nil
	}
	return nil
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
