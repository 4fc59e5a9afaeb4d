package store

import (
	"context"
	"sync"
)

// Durable-store keys. Each holds one JSON array.
const (
	KeyCartLines    = "cart_lines"
	KeyPaymentQueue = "payment_queue"
)

// Snapshots is the durable key/value port behind the staging stores. A
// Write fully replaces the payload under key or leaves the prior contents
// in place; readers never observe a partial write. A missing key reads as
// (nil, nil).
type Snapshots interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
}

// MemSnapshots is an in-memory Snapshots, used in tests and as the
// throwaway backend.
type MemSnapshots struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemSnapshots() *MemSnapshots {
	return &MemSnapshots{data: make(map[string][]byte)}
}

func (s *MemSnapshots) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (s *MemSnapshots) Write(ctx context.Context, key string, data []byte) error {
	payload := make([]byte, len(data))
	copy(payload, data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = payload
	return nil
}
