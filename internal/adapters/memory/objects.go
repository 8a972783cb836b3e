package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/design-smith/AWSDataScanner/internal/ports"
)

// ObjectStore serves object bodies from process memory.
type ObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewObjectStore() *ObjectStore {
	return &ObjectStore{objects: make(map[string][]byte)}
}

func (s *ObjectStore) Put(bucket, key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = body
}

func (s *ObjectStore) Stat(_ context.Context, bucket, key string) (ports.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[bucket+"/"+key]
	if !ok {
		return ports.ObjectInfo{}, fmt.Errorf("no such object %s/%s", bucket, key)
	}
	return ports.ObjectInfo{Key: key, SizeBytes: int64(len(b))}, nil
}

func (s *ObjectStore) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such object %s/%s", bucket, key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *ObjectStore) List(_ context.Context, bucket, prefix string) ([]ports.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ports.ObjectInfo
	for k, b := range s.objects {
		if key, ok := strings.CutPrefix(k, bucket+"/"); ok && strings.HasPrefix(key, prefix) {
			out = append(out, ports.ObjectInfo{Key: key, SizeBytes: int64(len(b))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
