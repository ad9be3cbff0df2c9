package pubsub

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultBuffer = 16

// Broker fans events out to in-process subscribers. Delivery is
// at-most-once: nothing is stored, replayed or retried, and an event is
// dropped for any subscriber whose buffer is full.
type Broker[T any] struct {
	topic  string
	buffer int
	logger *logrus.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan T
	closed bool
	done   chan struct{}

	watchers sync.WaitGroup
}

func NewBroker[T any](topic string, buffer int, logger *logrus.Logger) *Broker[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Broker[T]{
		topic:  topic,
		buffer: buffer,
		logger: logger,
		subs:   make(map[uint64]chan T),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a subscriber that receives events published from now
// on. The channel is closed when ctx ends or the broker is closed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.watchers.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.watchers.Done()
		select {
		case <-ctx.Done():
			b.unsubscribe(id)
		case <-b.done:
		}
	}()

	return ch
}

// Publish delivers event to every current subscriber without blocking.
func (b *Broker[T]) Publish(event T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.WithFields(logrus.Fields{
				"topic":      b.topic,
				"subscriber": id,
			}).Warn("subscriber buffer full, event dropped")
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Broker[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription and waits for their context watchers to
// exit. Later publishes are ignored.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	n := len(b.subs)
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	b.watchers.Wait()
	b.logger.WithFields(logrus.Fields{
		"topic":       b.topic,
		"subscribers": n,
	}).Info("broker closed")
}

func (b *Broker[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}
