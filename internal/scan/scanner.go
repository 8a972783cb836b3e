package scan

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/design-smith/AWSDataScanner/internal/detect"
	"github.com/design-smith/AWSDataScanner/internal/ports"
)

// DefaultMaxObjectSize is the ceiling on scannable objects.
const DefaultMaxObjectSize = 500 * 1024 * 1024

// sniffLen is how many leading bytes are inspected for the text policy when
// the key's extension is not on the allowlist.
const sniffLen = 1024

// textExtensions is the plain-text allowlist. Keys with one of these
// extensions skip content sniffing.
var textExtensions = map[string]struct{}{
	".txt": {}, ".log": {}, ".csv": {}, ".json": {}, ".xml": {},
	".html": {}, ".htm": {}, ".md": {}, ".py": {}, ".js": {},
	".java": {}, ".c": {}, ".cpp": {}, ".h": {}, ".sh": {},
	".yml": {}, ".yaml": {}, ".toml": {}, ".ini": {}, ".cfg": {},
	".conf": {}, ".sql": {}, ".go": {}, ".env": {}, ".tsv": {},
}

// binaryExtensions are formats known to never contain scannable text lines.
// Keys with one of these are skipped before a byte is fetched; anything not
// on either list is resolved by content sniffing at scan time.
var binaryExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".bmp": {},
	".ico": {}, ".webp": {}, ".mp3": {}, ".mp4": {}, ".avi": {},
	".mov": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".bz2": {},
	".xz": {}, ".7z": {}, ".rar": {}, ".exe": {}, ".dll": {},
	".so": {}, ".dylib": {}, ".pdf": {}, ".doc": {}, ".docx": {},
	".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {}, ".parquet": {},
	".avro": {}, ".pb": {}, ".wasm": {}, ".class": {}, ".jar": {},
}

// TextExtension reports whether the key's extension marks it as
// line-oriented text without looking at the content.
func TextExtension(key string) bool {
	_, ok := textExtensions[strings.ToLower(path.Ext(key))]
	return ok
}

// BinaryExtension reports whether the key's extension marks it as
// not scannable, allowing a skip without opening the object.
func BinaryExtension(key string) bool {
	_, ok := binaryExtensions[strings.ToLower(path.Ext(key))]
	return ok
}

// LineMatch is a detector match anchored to its position in the object.
// Line carries the full line text so the writer can slice a context
// snippet; it is dropped once the finding row is built.
type LineMatch struct {
	detect.Match
	LineNumber int
	Line       string
}

// FileScanner streams a single object and runs the detector set over every
// line. It holds no per-object state and is safe for concurrent use.
type FileScanner struct {
	store     ports.ObjectStore
	set       *detect.Set
	chunkSize int
	maxSize   int64
}

func NewFileScanner(store ports.ObjectStore, set *detect.Set, chunkSize int, maxSize int64) *FileScanner {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxObjectSize
	}
	return &FileScanner{store: store, set: set, chunkSize: chunkSize, maxSize: maxSize}
}

// Scan streams bucket/key and returns every detector match.
//
// Returns ErrObjectTooLarge when the object exceeds the size limit and
// ErrUnsupportedContent when the content policy rejects it; both are
// object-fatal, not retryable. The stream is checked against ctx between
// lines so a worker drain cancels promptly.
func (s *FileScanner) Scan(ctx context.Context, bucket, key string) ([]LineMatch, error) {
	info, err := s.store.Stat(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("stat %s/%s: %w", bucket, key, err)
	}
	if info.SizeBytes > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrObjectTooLarge, info.SizeBytes, s.maxSize)
	}

	body, err := s.store.Open(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", bucket, key, err)
	}
	defer body.Close()

	reader := io.Reader(body)
	if !TextExtension(key) {
		head := make([]byte, sniffLen)
		n, rerr := io.ReadFull(body, head)
		if rerr != nil && rerr != io.EOF && rerr != io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("sniff %s/%s: %w", bucket, key, rerr)
		}
		head = head[:n]
		if !looksLikeText(head) {
			return nil, ErrUnsupportedContent
		}
		reader = io.MultiReader(strings.NewReader(string(head)), body)
	}

	var out []LineMatch
	lines := NewLineReader(reader, s.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNo, line, err := lines.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("stream %s/%s: %w", bucket, key, err)
		}
		for _, m := range s.set.ScanLine(line) {
			out = append(out, LineMatch{Match: m, LineNumber: lineNo, Line: line})
		}
	}
}

// looksLikeText rejects content with NUL bytes or invalid UTF-8 in the
// sampled head. A truncated multi-byte rune at the very end of the sample is
// tolerated.
func looksLikeText(head []byte) bool {
	if len(head) == 0 {
		return true
	}
	for _, b := range head {
		if b == 0 {
			return false
		}
	}
	for len(head) > 0 {
		r, size := utf8.DecodeRune(head)
		if r == utf8.RuneError && size == 1 {
			// Invalid unless it is a rune cut off by the sample boundary.
			return len(head) < utf8.UTFMax
		}
		head = head[size:]
	}
	return true
}
