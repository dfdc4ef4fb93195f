/*
Package notify turns store writes into live change notifications.

PURPOSE:
  The scan watcher needs to hear about new inbox values as they land. This
  package decorates any attendance.Store so that each successful Write or
  Delete is published as an attendance.Change, and offers two transports:

    Hub    in-process fan-out, for a single server and for tests
    Redis  pub/sub over one channel, for several processes sharing a store

ORDERING:
  Changes are delivered to each subscriber in publish order. Nothing is
  promised across subscribers.
*/
package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/warp/attendance-engine/attendance"
)

// Publisher sends one change to every interested subscriber.
type Publisher interface {
	Publish(ctx context.Context, ch attendance.Change) error
}

// Hub is an in-process Publisher and attendance.Subscriber.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

// Publish queues ch for every subscriber whose prefix matches. It never
// blocks on a slow subscriber.
func (h *Hub) Publish(_ context.Context, ch attendance.Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if strings.HasPrefix(ch.Path, sub.prefix) {
			sub.push(ch)
		}
	}
	return nil
}

// Subscribe delivers changes under prefix until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, prefix string) (<-chan attendance.Change, error) {
	sub := &subscription{
		prefix: prefix,
		out:    make(chan attendance.Change),
		wake:   make(chan struct{}, 1),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		sub.pump(ctx)
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		close(sub.out)
	}()
	return sub.out, nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// subscription buffers without bound so that a subscriber which writes to
// the store while handling a change cannot deadlock against itself.
type subscription struct {
	prefix string
	out    chan attendance.Change
	wake   chan struct{}

	mu    sync.Mutex
	queue []attendance.Change
}

func (s *subscription) push(ch attendance.Change) {
	s.mu.Lock()
	s.queue = append(s.queue, ch)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) pop() (attendance.Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return attendance.Change{}, false
	}
	ch := s.queue[0]
	s.queue = s.queue[1:]
	return ch, true
}

func (s *subscription) pump(ctx context.Context) {
	for {
		ch, ok := s.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		select {
		case <-ctx.Done():
			return
		case s.out <- ch:
		}
	}
}
