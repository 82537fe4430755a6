package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Object is a stored blob together with the metadata it was written with.
type Object struct {
	Data []byte
	Meta Metadata
}

// Memory is an in-process Backend for local development and tests.
// A body that fails mid-read is never committed.
type Memory struct {
	mu      sync.RWMutex
	base    string
	objects map[string]map[string]Object
}

// NewMemory returns an empty store whose URLs start with base.
func NewMemory(base string) *Memory {
	if base == "" {
		base = "memory://local"
	}
	return &Memory{base: base, objects: make(map[string]map[string]Object)}
}

// PutObject reads body to the end, then replaces (bucket, key).
func (m *Memory) PutObject(ctx context.Context, bucket, key string, body io.Reader, meta Metadata) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read object %q: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.objects[bucket]
	if !ok {
		b = make(map[string]Object)
		m.objects[bucket] = b
	}
	b[key] = Object{Data: data, Meta: meta}
	return nil
}

// URL returns "base/bucket/key".
func (m *Memory) URL(bucket, key string) string {
	return pathStyleURL(m.base, bucket, key)
}

// Get returns the object at (bucket, key).
func (m *Memory) Get(bucket, key string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[bucket][key]
	return obj, ok
}

// Len reports how many objects bucket holds.
func (m *Memory) Len(bucket string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects[bucket])
}
