// Package bus is an in-process publish/subscribe fan-out. Subscribers are
// plain callbacks; a callback that fails (returns an error or panics) is
// dropped from the subscriber set once the publish that observed the failure
// has finished delivering to everybody else.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/multierr"
)

var log = logging.Logger("bus")

// ErrDeliveryFailed wraps every per-subscriber failure returned by Publish.
var ErrDeliveryFailed = errors.New("subscriber delivery failed")

// Handler receives published messages. Returning an error unsubscribes it.
type Handler[T any] func(msg T) error

// Bus fans messages of type T out to its subscribers.
type Bus[T any] struct {
	mu   sync.RWMutex
	subs map[string]Handler[T]
}

// New creates an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[string]Handler[T])}
}

// Subscribe registers h and returns the handle used to unsubscribe it.
func (b *Bus[T]) Subscribe(h Handler[T]) string {
	id := uuid.NewString()
	b.mu.Lock()
	b.subs[id] = h
	b.mu.Unlock()
	log.Debugw("subscribed", "id", id)
	return id
}

// Unsubscribe removes a subscriber. Unknown handles are ignored.
func (b *Bus[T]) Unsubscribe(id string) {
	b.mu.Lock()
	_, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		log.Debugw("unsubscribed", "id", id)
	}
}

// Len returns the number of current subscribers.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers msg to every subscriber. Handlers run outside the bus
// lock, so a handler may Subscribe or Unsubscribe. Failed subscribers are
// removed after the whole pass; the combined failures are returned.
func (b *Bus[T]) Publish(msg T) error {
	b.mu.RLock()
	targets := make(map[string]Handler[T], len(b.subs))
	for id, h := range b.subs {
		targets[id] = h
	}
	b.mu.RUnlock()

	var errs error
	var dead []string
	for id, h := range targets {
		if err := deliver(h, msg); err != nil {
			dead = append(dead, id)
			errs = multierr.Append(errs, fmt.Errorf("%w: %s: %w", ErrDeliveryFailed, id, err))
		}
	}

	if len(dead) > 0 {
		b.mu.Lock()
		for _, id := range dead {
			delete(b.subs, id)
		}
		b.mu.Unlock()
		log.Infow("dropped failing subscribers", "count", len(dead))
	}
	return errs
}

// Close drops every subscriber.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	b.subs = make(map[string]Handler[T])
	b.mu.Unlock()
}

func deliver[T any](h Handler[T], msg T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(msg)
}
