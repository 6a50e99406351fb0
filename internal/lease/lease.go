// Package lease provides time-bounded exclusive claims, used to keep at
// most one availability check in flight per route. A claim that is never
// released falls off on its own when the TTL passes, so a stalled worker
// cannot block a route forever.
package lease

import (
	"context"
	"sync"
	"time"
)

type Lease interface {
	// Acquire claims key for ttl. It reports false when somebody else
	// holds a live claim.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Memory is the in-process implementation, for single-process deployments
// and tests.
type Memory struct {
	mu     sync.Mutex
	claims map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{claims: map[string]time.Time{}}
}

func (m *Memory) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.claims[key]; ok && time.Now().Before(exp) {
		return false, nil
	}
	m.claims[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *Memory) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.claims, key)
	m.mu.Unlock()
	return nil
}
