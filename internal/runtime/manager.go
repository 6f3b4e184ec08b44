package runtime

import (
	"context"
	"fmt"
	"sync"
)

// SessionKey identifies one customer's logical conversation, the unit the
// engine serializes against so messages from the same customer are never
// processed concurrently.
type SessionKey struct {
	OwnerUserID   string
	CustomerPhone string
	Platform      string
}

// String renders a stable map/log key.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.OwnerUserID, k.CustomerPhone, k.Platform)
}

// DispatcherManager owns one Dispatcher per SessionKey, so every
// conversation gets its own FIFO queue without any cross-tenant
// coordination.
type DispatcherManager struct {
	handler   Handler
	queueSize int

	mu          sync.Mutex
	dispatchers map[string]*Dispatcher
}

// NewDispatcherManager builds a manager that routes every session's
// messages through handler, each with its own FIFO queue.
func NewDispatcherManager(handler Handler, queueSize int) *DispatcherManager {
	return &DispatcherManager{
		handler:     handler,
		queueSize:   queueSize,
		dispatchers: make(map[string]*Dispatcher),
	}
}

// Enqueue routes msg to the dispatcher for key, starting one if needed.
func (m *DispatcherManager) Enqueue(ctx context.Context, key SessionKey, msg *Message, writer ResponseWriter) error {
	d, err := m.dispatcherFor(ctx, key)
	if err != nil {
		return err
	}
	return d.Enqueue(ctx, msg, writer)
}

func (m *DispatcherManager) dispatcherFor(ctx context.Context, key SessionKey) (*Dispatcher, error) {
	k := key.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.dispatchers[k]; ok {
		return d, nil
	}
	d := NewDispatcher(m.handler, m.queueSize)
	if err := d.Start(ctx); err != nil {
		return nil, err
	}
	m.dispatchers[k] = d
	return d, nil
}

// StopAll cancels every session's in-flight run and drains its queue.
func (m *DispatcherManager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.dispatchers {
		d.Stop()
	}
}

// Remove stops and forgets a session's dispatcher, used when a session closes.
func (m *DispatcherManager) Remove(key SessionKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.dispatchers[key.String()]; ok {
		d.Stop()
		delete(m.dispatchers, key.String())
	}
}
