package delivery

import (
	"context"

	"courier/internal/logging"
	"courier/internal/queue"
)

// DepthEvent reports queue occupancy after a mutation. An empty Class
// means the event covers the whole queue (a full clear).
type DepthEvent struct {
	Class string
	Depth int
	Total int
}

// DropReason says why a request left the queue without being delivered.
type DropReason string

const (
	// DropReasonExhausted marks a request whose retry budget ran out.
	DropReasonExhausted DropReason = "exhausted"
	// DropReasonRejected marks a request the upstream answered with a
	// terminal status.
	DropReasonRejected DropReason = "rejected"
)

// DropEvent carries a copy of the dropped request and the reason.
type DropEvent struct {
	Request queue.Request
	Reason  DropReason
}

// SubscribeDepth registers fn for queue-depth changes. Callbacks run
// synchronously on the manager's goroutines and must not block. The
// returned cancel is idempotent.
func (m *Manager) SubscribeDepth(fn func(DepthEvent)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.depthSubs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.depthSubs, id)
		m.subMu.Unlock()
	}
}

// SubscribeDrops registers fn for terminal drops. Each dropped request
// fires every subscriber exactly once. Callbacks run synchronously and
// must not block. The returned cancel is idempotent.
func (m *Manager) SubscribeDrops(fn func(DropEvent)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.dropSubs[id] = fn
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		delete(m.dropSubs, id)
		m.subMu.Unlock()
	}
}

// emitDepth reads current counts and dispatches a DepthEvent for class.
func (m *Manager) emitDepth(ctx context.Context, class string) {
	m.subMu.Lock()
	subscribed := len(m.depthSubs) > 0
	m.subMu.Unlock()
	if !subscribed {
		return
	}

	byClass, err := m.store.CountByClass(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue depth for event", logging.Error(err))
		return
	}
	total := 0
	for _, n := range byClass {
		total += n
	}
	m.dispatchDepth(DepthEvent{Class: class, Depth: byClass[class], Total: total})
}

func (m *Manager) dispatchDepth(event DepthEvent) {
	m.subMu.Lock()
	subs := make([]func(DepthEvent), 0, len(m.depthSubs))
	for _, fn := range m.depthSubs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(event)
	}
}

func (m *Manager) emitDrop(req queue.Request, reason DropReason) {
	m.subMu.Lock()
	subs := make([]func(DropEvent), 0, len(m.dropSubs))
	for _, fn := range m.dropSubs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		fn(DropEvent{Request: *req.Clone(), Reason: reason})
	}
}
