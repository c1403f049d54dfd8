// Package store provides the object store backends holding match
// records and batch manifests: an in-memory map for tests and single
// process setups, a bbolt file for local deployments, and an
// S3-compatible client for the hot bucket.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ocentra/matchproof/internal/domain"
)

type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// WithBaseURL makes Put return baseURL/key instead of the bare key.
func (m *Memory) WithBaseURL(baseURL string) *Memory {
	m.baseURL = baseURL
	return m
}

func (m *Memory) Put(ctx context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	if m.baseURL != "" {
		return m.baseURL + "/" + key, nil
	}
	return key, nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: object %s", domain.ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}

// Len reports the number of stored objects.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
