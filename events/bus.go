/*
bus.go - Typed in-process event bus

PURPOSE:
  Lets components announce domain facts ("a voucher was issued", "a request
  was reviewed") without knowing who listens. Consumers register for a
  concrete Go type; there are no string-named topics.

DELIVERY:
  - Synchronous, in subscription order, on the publisher's goroutine
  - A panicking handler is recovered and logged; other handlers still run
  - Publishing with no subscribers is not an error

USAGE:
  bus := events.NewBus(logger)
  unsubscribe := events.Subscribe(bus, func(ctx context.Context, e issuance.VoucherIssued) {
      ...
  })
  bus.Publish(ctx, issuance.VoucherIssued{...})

SEE ALSO:
  - relay.go: forwards every event to Redis
  - audit/recorder.go, metrics/metrics.go: subscribers
*/
package events

import (
	"context"
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

// Named is implemented by events that carry a stable wire name.
// Relays use it; the bus itself dispatches on the Go type.
type Named interface {
	EventName() string
}

type subscription struct {
	id      uint64
	handler func(context.Context, any)
}

// Bus dispatches events to handlers registered for the event's type.
type Bus struct {
	mu       sync.RWMutex
	log      zerolog.Logger
	nextID   uint64
	handlers map[reflect.Type][]subscription
	catchAll []subscription
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log:      log,
		handlers: make(map[reflect.Type][]subscription),
	}
}

// Subscribe registers fn for events of type T and returns a function that
// removes the registration.
func Subscribe[T any](b *Bus, fn func(context.Context, T)) func() {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return b.add(t, func(ctx context.Context, e any) {
		fn(ctx, e.(T))
	})
}

// SubscribeAll registers fn for every published event.
func (b *Bus) SubscribeAll(fn func(context.Context, any)) func() {
	return b.add(nil, fn)
}

func (b *Bus) add(t reflect.Type, fn func(context.Context, any)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := subscription{id: b.nextID, handler: fn}
	if t == nil {
		b.catchAll = append(b.catchAll, sub)
	} else {
		b.handlers[t] = append(b.handlers[t], sub)
	}

	id := sub.id
	return func() { b.remove(t, id) }
}

func (b *Bus) remove(t reflect.Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.catchAll
	if t != nil {
		subs = b.handlers[t]
	}
	kept := make([]subscription, 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			kept = append(kept, s)
		}
	}
	if t == nil {
		b.catchAll = kept
	} else {
		b.handlers[t] = kept
	}
}

// Publish delivers event to every handler registered for its type, then to
// the catch-all handlers. A nil bus drops the event.
func (b *Bus) Publish(ctx context.Context, event any) {
	if b == nil || event == nil {
		return
	}

	b.mu.RLock()
	typed := b.handlers[reflect.TypeOf(event)]
	subs := make([]subscription, 0, len(typed)+len(b.catchAll))
	subs = append(subs, typed...)
	subs = append(subs, b.catchAll...)
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.log.Debug().Str("event", eventName(event)).Msg("no subscribers")
		return
	}

	for _, s := range subs {
		b.deliver(ctx, s, event)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, event any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Str("event", eventName(event)).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	s.handler(ctx, event)
}

// SubscribersCount returns the number of registered handlers.
func (b *Bus) SubscribersCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.catchAll)
	for _, subs := range b.handlers {
		n += len(subs)
	}
	return n
}

func eventName(event any) string {
	if n, ok := event.(Named); ok {
		return n.EventName()
	}
	return reflect.TypeOf(event).String()
}
