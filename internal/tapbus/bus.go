// Package tapbus fans filtered frames out to slow observers (snapshot
// writers, previews) without ever blocking the capture loop.
//
// Publish copies the frame at most once and offers it to every subscriber
// with a non-blocking send. A subscriber whose channel is full misses the
// frame and the miss is counted as a drop.
package tapbus

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrBusClosed          = errors.New("tapbus: bus is closed")
	ErrSubscriberExists   = errors.New("tapbus: subscriber already exists")
	ErrSubscriberNotFound = errors.New("tapbus: subscriber not found")
	ErrNilChannel         = errors.New("tapbus: nil channel provided")
)

// Frame is an owned copy of a filtered frame.
type Frame struct {
	Seq  uint64
	Data []byte
}

// SubscriberStats tracks delivery to one subscriber
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
	// Skipped counts frames the subscriber's filter did not want
	Skipped uint64
}

// BusStats is a snapshot of all subscribers
type BusStats struct {
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
	Subscribers    map[string]SubscriberStats
}

// Option configures a subscription
type Option func(*subscriber)

// EveryNth offers the subscriber only frames whose sequence number is a
// multiple of n. n <= 1 offers every frame.
func EveryNth(n uint64) Option {
	return func(s *subscriber) {
		if n > 1 {
			s.every = n
		}
	}
}

type subscriber struct {
	ch    chan<- Frame
	every uint64

	sent    atomic.Uint64
	dropped atomic.Uint64
	skipped atomic.Uint64
}

func (s *subscriber) wants(seq uint64) bool {
	return s.every <= 1 || seq%s.every == 0
}

// Bus distributes filtered frames to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	published   atomic.Uint64
	closed      bool
}

// New creates an empty bus
func New() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers ch under id. ch must be buffered: an unbuffered channel
// is always full and drops every frame. The bus never closes ch.
func (b *Bus) Subscribe(id string, ch chan<- Frame, opts ...Option) error {
	if ch == nil {
		return ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}

	s := &subscriber{ch: ch}
	for _, opt := range opts {
		opt(s)
	}
	b.subscribers[id] = s
	return nil
}

// Unsubscribe removes a subscriber
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(b.subscribers, id)
	return nil
}

// Publish offers a copy of data to every subscriber. It has the signature
// of edgeview.TapFunc and does not retain data.
func (b *Bus) Publish(seq uint64, data []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	var owned []byte
	for _, s := range b.subscribers {
		if !s.wants(seq) {
			s.skipped.Add(1)
			continue
		}
		// Only the publisher sends, so a channel with room stays with room
		if len(s.ch) == cap(s.ch) {
			s.dropped.Add(1)
			continue
		}
		if owned == nil {
			owned = make([]byte, len(data))
			copy(owned, data)
		}

		select {
		case s.ch <- Frame{Seq: seq, Data: owned}:
			s.sent.Add(1)
		default:
			s.dropped.Add(1)
		}
	}
}

// Stats returns a snapshot of bus and subscriber counters
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := BusStats{
		TotalPublished: b.published.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, s := range b.subscribers {
		sub := SubscriberStats{
			Sent:    s.sent.Load(),
			Dropped: s.dropped.Load(),
			Skipped: s.skipped.Load(),
		}
		stats.TotalSent += sub.Sent
		stats.TotalDropped += sub.Dropped
		stats.Subscribers[id] = sub
	}
	return stats
}

// Close stops distribution. Subscribers keep their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
}
