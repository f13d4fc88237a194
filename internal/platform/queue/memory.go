package queue

import (
	"context"
	"sync"
	"time"

	perr "graphpipe/internal/platform/errors"

	"github.com/google/uuid"
)

// Memory is an in-process Queue with real visibility-window behavior,
// used by tests and local runs. FIFO by enqueue order
type Memory struct {
	name       string
	visibility time.Duration

	mu    sync.Mutex
	items []*memItem

	// now is a seam for visibility-timeout tests
	now func() time.Time
}

type memItem struct {
	id         string
	env        Envelope
	visibleAt  time.Time
	deliveries int
}

// NewMemory builds an in-memory queue with the given visibility window
func NewMemory(name string, visibility time.Duration) *Memory {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &Memory{name: name, visibility: visibility, now: time.Now}
}

// Name returns the queue name
func (m *Memory) Name() string { return m.name }

// Init is a no-op for the in-memory queue
func (m *Memory) Init(_ context.Context) error { return nil }

// Send enqueues one envelope
func (m *Memory) Send(_ context.Context, env Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, &memItem{
		id:        uuid.NewString(),
		env:       env,
		visibleAt: m.now(),
	})
	return nil
}

// Receive returns the oldest visible message and hides it for the visibility
// window; (nil, nil) when nothing is visible
func (m *Memory) Receive(_ context.Context) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, it := range m.items {
		if it.visibleAt.After(now) {
			continue
		}
		it.visibleAt = now.Add(m.visibility)
		it.deliveries++
		return &Message{
			Envelope:   it.env,
			ID:         it.id,
			Deliveries: it.deliveries,
		}, nil
	}
	return nil, nil
}

// Delete removes a received message; unknown ids are a no-op
func (m *Memory) Delete(_ context.Context, msg *Message) error {
	if msg == nil || msg.ID == "" {
		return perr.InvalidArgf("delete requires a received message")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.id == msg.ID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return nil
}

// Count returns the number of messages in the queue, visible or not
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

// Expire makes every in-flight message visible again immediately.
// Test helper standing in for the passage of the visibility window
func (m *Memory) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, it := range m.items {
		if it.visibleAt.After(now) {
			it.visibleAt = now
		}
	}
}
