package realtime

import (
	"context"
	"sync"

	"resume-editor/internal/shared/telemetry"
)

const memoryBuffer = 64

// MemoryHub is an in-process Channel used when Redis is not configured.
type MemoryHub struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySub]struct{}
	closed bool
}

// NewMemoryHub constructs an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[string]map[*memorySub]struct{})}
}

// Publish delivers ev to every current subscriber of its resume. Slow
// subscribers drop events rather than block the publisher.
func (h *MemoryHub) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := EncodeEvent(ev); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for sub := range h.subs[ev.ResumeID] {
		copied := ev
		sub.offer(Delivery{Event: &copied}, ev.ResumeID)
	}
	return nil
}

// Subscribe registers for events on a resume.
func (h *MemoryHub) Subscribe(ctx context.Context, resumeID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	sub := &memorySub{hub: h, resumeID: resumeID, ch: make(chan Delivery, memoryBuffer)}
	if h.subs[resumeID] == nil {
		h.subs[resumeID] = make(map[*memorySub]struct{})
	}
	h.subs[resumeID][sub] = struct{}{}
	return sub, nil
}

// Resync asks every subscriber of a resume to reload from the store, as a
// transport does after reconnecting.
func (h *MemoryHub) Resync(resumeID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[resumeID] {
		sub.offer(Delivery{Resync: true}, resumeID)
	}
}

// Close terminates all subscriptions.
func (h *MemoryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for id, set := range h.subs {
		for sub := range set {
			close(sub.ch)
		}
		delete(h.subs, id)
	}
	return nil
}

type memorySub struct {
	hub      *MemoryHub
	resumeID string
	ch       chan Delivery
}

// offer is called with hub.mu held.
func (s *memorySub) offer(d Delivery, resumeID string) {
	select {
	case s.ch <- d:
	default:
		telemetry.Warn("realtime.drop", map[string]any{
			"resume_id": resumeID,
			"transport": "memory",
		})
	}
}

func (s *memorySub) Deliveries() <-chan Delivery {
	return s.ch
}

func (s *memorySub) Close() error {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	set, ok := s.hub.subs[s.resumeID]
	if !ok {
		return nil
	}
	if _, ok := set[s]; !ok {
		return nil
	}
	delete(set, s)
	if len(set) == 0 {
		delete(s.hub.subs, s.resumeID)
	}
	close(s.ch)
	return nil
}

var _ Channel = (*MemoryHub)(nil)
