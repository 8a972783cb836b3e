package scan

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/design-smith/AWSDataScanner/internal/detect"
	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/ports"
)

// fakeStore serves objects from a map.
type fakeStore struct {
	objects map[string][]byte
}

func (f *fakeStore) key(bucket, key string) string { return bucket + "/" + key }

func (f *fakeStore) Stat(_ context.Context, bucket, key string) (ports.ObjectInfo, error) {
	b, ok := f.objects[f.key(bucket, key)]
	if !ok {
		return ports.ObjectInfo{}, fmt.Errorf("no such object %s/%s", bucket, key)
	}
	return ports.ObjectInfo{Key: key, SizeBytes: int64(len(b))}, nil
}

func (f *fakeStore) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	b, ok := f.objects[f.key(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("no such object %s/%s", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeStore) List(_ context.Context, bucket, prefix string) ([]ports.ObjectInfo, error) {
	var out []ports.ObjectInfo
	for k, b := range f.objects {
		if strings.HasPrefix(k, bucket+"/"+prefix) {
			out = append(out, ports.ObjectInfo{Key: strings.TrimPrefix(k, bucket+"/"), SizeBytes: int64(len(b))})
		}
	}
	return out, nil
}

func TestFileScanner_Scan(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"b/logs/app.log": []byte("user ssn 123-45-6789\nnothing here\ncontact ops@example.com\n"),
	}}
	scanner := NewFileScanner(store, detect.NewSet(), 16, 0)

	got, err := scanner.Scan(context.Background(), "b", "logs/app.log")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.FindingSSN, got[0].Type)
	assert.Equal(t, 1, got[0].LineNumber)
	assert.Equal(t, domain.FindingEmail, got[1].Type)
	assert.Equal(t, 3, got[1].LineNumber)
}

func TestFileScanner_ObjectTooLarge(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"b/big.txt": bytes.Repeat([]byte("a"), 2048),
	}}
	scanner := NewFileScanner(store, detect.NewSet(), 64, 1024)

	_, err := scanner.Scan(context.Background(), "b", "big.txt")
	require.ErrorIs(t, err, ErrObjectTooLarge)
	assert.Contains(t, err.Error(), "2048")
}

func TestFileScanner_BinaryContentRejected(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"b/blob.bin": {0x7f, 'E', 'L', 'F', 0x00, 0x01, 0x02},
	}}
	scanner := NewFileScanner(store, detect.NewSet(), 64, 0)

	_, err := scanner.Scan(context.Background(), "b", "blob.bin")
	require.ErrorIs(t, err, ErrUnsupportedContent)
}

// A text allowlist extension bypasses content sniffing entirely.
func TestFileScanner_ExtensionSkipsSniff(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"b/data.csv": []byte("name,card\nalice,4532-1488-0343-6467\n"),
	}}
	scanner := NewFileScanner(store, detect.NewSet(), 64, 0)

	got, err := scanner.Scan(context.Background(), "b", "data.csv")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.FindingCreditCard, got[0].Type)
	assert.Equal(t, 2, got[0].LineNumber)
}

// Sniffed head bytes must still be scanned, not consumed and dropped.
func TestFileScanner_SniffedHeadIsScanned(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"b/noext": []byte("ssn 123-45-6789 at the very start\n"),
	}}
	scanner := NewFileScanner(store, detect.NewSet(), 8, 0)

	got, err := scanner.Scan(context.Background(), "b", "noext")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].LineNumber)
	assert.Equal(t, 4, got[0].Start)
}

func TestFileScanner_ContextCancelled(t *testing.T) {
	store := &fakeStore{objects: map[string][]byte{
		"b/a.txt": []byte("line\nline\n"),
	}}
	scanner := NewFileScanner(store, detect.NewSet(), 4, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scanner.Scan(ctx, "b", "a.txt")
	require.ErrorIs(t, err, context.Canceled)
}

func TestTextExtension(t *testing.T) {
	assert.True(t, TextExtension("logs/app.LOG"))
	assert.True(t, TextExtension("a/b/c.json"))
	assert.False(t, TextExtension("archive.zip"))
	assert.False(t, TextExtension("noext"))
}
