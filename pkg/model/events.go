package model

import "slices"

// Subscription is a handler bound to a model event. Releasing it detaches the
// handler; a released subscription never fires again, even when released from
// inside a dispatch in progress.
type Subscription struct {
	model    *Model
	event    string
	fn       func()
	released bool
}

// Release detaches the handler. It is safe to call more than once.
func (s *Subscription) Release() {
	if s == nil || s.released {
		return
	}
	s.released = true
	subs := s.model.handlers[s.event]
	s.model.handlers[s.event] = slices.DeleteFunc(subs, func(x *Subscription) bool { return x == s })
	if len(s.model.handlers[s.event]) == 0 {
		delete(s.model.handlers, s.event)
	}
}

// Released reports whether Release has been called.
func (s *Subscription) Released() bool { return s == nil || s.released }

// On binds fn to event. Handlers run synchronously, in binding order, on the
// goroutine that triggers the event.
func (m *Model) On(event string, fn func()) *Subscription {
	s := &Subscription{model: m, event: event, fn: fn}
	m.handlers[event] = append(m.handlers[event], s)
	return s
}

// Trigger runs every handler bound to event and returns how many ran.
func (m *Model) Trigger(event string) int {
	subs := slices.Clone(m.handlers[event])
	n := 0
	for _, s := range subs {
		if s.released {
			continue
		}
		s.fn()
		n++
	}
	return n
}

// Listeners returns the number of live handlers bound to event.
func (m *Model) Listeners(event string) int {
	return len(m.handlers[event])
}

// ReleaseAll detaches every handler bound to the model.
func (m *Model) ReleaseAll() {
	for _, subs := range m.handlers {
		for _, s := range subs {
			s.released = true
		}
	}
	clear(m.handlers)
}
