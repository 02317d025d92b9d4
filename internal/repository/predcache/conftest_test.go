package predcache

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/plantclf/internal/db"
)

type mockClassifier struct {
	mu    sync.Mutex
	probs []float32
	err   error
	calls int
	size  int
}

func (m *mockClassifier) Classify(_ context.Context, _ []float32) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]float32, len(m.probs))
	copy(out, m.probs)
	return out, nil
}

func (m *mockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type sizedClassifier struct {
	mockClassifier
}

func (s *sizedClassifier) OutputSize() int { return s.size }

// memStore is an in-memory KV store; getErr/setErr inject faults.
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
	sets   int
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (s *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}
