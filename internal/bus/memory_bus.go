// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/voicecab/internal/log"
	"github.com/ManuGH/voicecab/internal/metrics"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

const dropLogEvery = 100

var dropCount atomic.Uint64

// ErrClosed is returned when subscribing to a closed bus.
var ErrClosed = errors.New("bus closed")

// MemoryBus is an in-memory pub/sub. Publish blocks per subscriber until the
// message is buffered or the publish context ends; delivery order per topic is
// the publish order.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string][]*memSub
	buffer int
	closed bool
}

// Option configures a MemoryBus.
type Option func(*MemoryBus)

// WithBufferSize overrides the per-subscriber buffer.
func WithBufferSize(n int) Option {
	return func(b *MemoryBus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func NewMemoryBus(opts ...Option) *MemoryBus {
	b := &MemoryBus{subs: make(map[string][]*memSub), buffer: DefaultBufferSize}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, msg Message) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	subs := append([]*memSub(nil), b.subs[topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.deliver(ctx, msg); err != nil {
			if errors.Is(err, errSubClosed) {
				continue
			}
			reason := publishDropReason(err)
			metrics.IncBusDropReason(topic, reason)
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				log.L().Warn().
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish topic %q: %w", topic, err)
		}
	}
	return nil
}

// Subscribe registers a new subscriber. The subscription is closed when ctx ends
// or Close is called, whichever comes first.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (Subscriber, error) {
	if ctx == nil {
		return nil, fmt.Errorf("subscribe context is nil")
	}
	s := &memSub{b: b, topic: topic, ch: make(chan Message, b.buffer), done: make(chan struct{})}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	b.subs[topic] = append(b.subs[topic], s)
	metrics.SetBusSubscribers(topic, len(b.subs[topic]))
	b.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

// Close closes every subscriber and rejects new subscriptions.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	var all []*memSub
	for _, lst := range b.subs {
		all = append(all, lst...)
	}
	b.mu.Unlock()

	for _, s := range all {
		_ = s.Close()
	}
	return nil
}

var errSubClosed = errors.New("subscriber closed")

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan Message

	mu        sync.RWMutex // guards send vs close on ch
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

func (s *memSub) C() <-chan Message {
	return s.ch
}

func (s *memSub) deliver(ctx context.Context, msg Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errSubClosed
	}
	select {
	case s.ch <- msg:
		return nil
	case <-s.done:
		return errSubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *memSub) Close() error {
	s.b.mu.Lock()
	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	metrics.SetBusSubscribers(s.topic, len(out))
	s.b.mu.Unlock()

	s.closeOnce.Do(func() {
		// done first: a deliver blocked on a full channel holds the read lock.
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}

// Ensure compliance
var _ Bus = (*MemoryBus)(nil)
