package tokenstore

import (
	"sync"
	"time"
)

// Memory is an in-process Store. It backs the CLI and tests.
type Memory struct {
	mu      sync.Mutex
	bundle  Bundle
	pending *PendingAuth
	now     func() time.Time
}

// NewMemory returns an empty Memory store. now may be nil.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{now: now}
}

func (m *Memory) Get() Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bundle
}

func (m *Memory) Set(b Bundle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundle = b
	return nil
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundle = Bundle{}
	m.pending = nil
}

func (m *Memory) SetState(p PendingAuth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	m.pending = &p
	return nil
}

func (m *Memory) ConsumeState() (PendingAuth, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.pending
	m.pending = nil
	if p == nil || m.now().Sub(p.CreatedAt) > StateTTL {
		return PendingAuth{}, false
	}
	return *p, true
}
