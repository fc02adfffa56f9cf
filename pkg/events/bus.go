// Package events provides the publish/subscribe bus a composition root uses
// for cross-cutting commands such as refreshing every child.
//
// A [Bus] is owned by exactly one root and torn down with it; there is no
// visibility across roots. Handlers run synchronously on the goroutine that
// calls [Bus.Trigger].
package events

import (
	"slices"
	"sync"
)

// ForceUpdateAll asks the root to refetch every child's backing data.
const ForceUpdateAll = "forceUpdateAll"

// Handler receives the arguments passed to Trigger.
type Handler func(args ...any)

// Subscription is one handler bound to one event name.
type Subscription struct {
	bus  *Bus
	name string
	fn   Handler
}

// Release detaches the handler. It is safe to call more than once.
func (s *Subscription) Release() {
	if s != nil {
		s.bus.Off(s)
	}
}

// Bus is a named-event dispatcher. It is safe for concurrent use.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*Subscription
	closed   bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]*Subscription)}
}

// On binds fn to name. Binding on a closed bus returns a subscription that
// never fires.
func (b *Bus) On(name string, fn Handler) *Subscription {
	s := &Subscription{bus: b, name: name, fn: fn}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.handlers[name] = append(b.handlers[name], s)
	}
	return s
}

// Off detaches s.
func (b *Bus) Off(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := slices.DeleteFunc(b.handlers[s.name], func(x *Subscription) bool { return x == s })
	if len(subs) == 0 {
		delete(b.handlers, s.name)
		return
	}
	b.handlers[s.name] = subs
}

// Trigger runs every handler bound to name, in binding order, and returns how
// many ran. Handlers may bind or release subscriptions while running.
func (b *Bus) Trigger(name string, args ...any) int {
	b.mu.Lock()
	subs := slices.Clone(b.handlers[name])
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(args...)
	}
	return len(subs)
}

// Listeners returns the number of handlers bound to name.
func (b *Bus) Listeners(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[name])
}

// Close drops every subscription. Later triggers are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	clear(b.handlers)
}
