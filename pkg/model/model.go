// Package model provides the mutable key/value records that back each child
// of a composition root.
//
// A [Model] holds [Attributes] and emits change notifications when they are
// mutated. Notifications carry no payload: receivers re-read the current
// attributes. The child identifier (cid) is assigned once and is read-only
// afterwards; it appears in every attribute snapshot under [KeyCID].
//
// Optional capabilities (fetch URL, realtime channel URL, response parsing,
// backing data source) are described by a [Kind], the Go replacement for a
// model class.
//
// Models are not safe for concurrent use. A composition root serializes all
// access on its control thread.
package model

import (
	"maps"
	"reflect"
	"slices"

	"github.com/matzehuels/automation/pkg/errors"
)

// Well-known event names.
const (
	// EventChange fires once per effective mutation batch.
	EventChange = "change"

	// EventNotifyChange is the secondary signal emitted when a realtime channel
	// merges data onto the model.
	EventNotifyChange = "notify-change"

	// EventSync fires after a successful fetch has been merged.
	EventSync = "sync"
)

// KeyCID is the attribute key under which the cid is exposed in snapshots.
const KeyCID = "cid"

// Attributes is a snapshot of model data.
type Attributes map[string]any

// Clone returns a shallow copy of a.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return Attributes{}
	}
	return maps.Clone(a)
}

// Keys returns the attribute keys in sorted order.
func (a Attributes) Keys() []string {
	return slices.Sorted(maps.Keys(a))
}

// Model is a mutable attribute record with change notification.
type Model struct {
	kind     *Kind
	attrs    Attributes
	cid      int
	hasCID   bool
	handlers map[string][]*Subscription
}

// SetOption tunes a single Set or SetAll call.
type SetOption func(*setOptions)

type setOptions struct {
	silent bool
}

// Silent suppresses change notifications for the mutation.
func Silent() SetOption {
	return func(o *setOptions) { o.silent = true }
}

// New creates a model with no kind. Use [Kind.New] to get defaults and
// capabilities.
func New() *Model {
	return &Model{
		attrs:    Attributes{},
		handlers: make(map[string][]*Subscription),
	}
}

// Kind returns the kind the model was created from, or nil.
func (m *Model) Kind() *Kind { return m.kind }

// CID returns the child identifier and whether one has been assigned.
func (m *Model) CID() (int, bool) { return m.cid, m.hasCID }

// AssignCID sets the child identifier. It succeeds exactly once.
func (m *Model) AssignCID(cid int) error {
	if m.hasCID {
		return errors.New(errors.ErrCodeReadOnly, "cid already assigned (%d)", m.cid)
	}
	m.cid = cid
	m.hasCID = true
	return nil
}

// Get returns the value stored under key, or nil.
func (m *Model) Get(key string) any {
	if key == KeyCID {
		if m.hasCID {
			return m.cid
		}
		return nil
	}
	return m.attrs[key]
}

// GetString returns the value under key when it is a string.
func (m *Model) GetString(key string) string {
	s, _ := m.Get(key).(string)
	return s
}

// Has reports whether key is present.
func (m *Model) Has(key string) bool {
	if key == KeyCID {
		return m.hasCID
	}
	_, ok := m.attrs[key]
	return ok
}

// Attributes returns a snapshot of the current attributes, including the cid.
func (m *Model) Attributes() Attributes {
	snap := m.attrs.Clone()
	if m.hasCID {
		snap[KeyCID] = m.cid
	}
	return snap
}

// Set stores value under key and notifies "change:<key>" and "change" when
// the stored value actually changed.
func (m *Model) Set(key string, value any, opts ...SetOption) error {
	return m.SetAll(Attributes{key: value}, opts...)
}

// SetAll merges attrs shallowly onto the model. Any key is accepted except
// the read-only cid, which fails the whole call before anything is written.
// A single "change" notification follows the per-key notifications.
func (m *Model) SetAll(attrs Attributes, opts ...SetOption) error {
	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	for key := range attrs {
		if key == KeyCID {
			return errors.New(errors.ErrCodeReadOnly, "attribute %q is read-only", KeyCID)
		}
	}

	var changed []string
	for _, key := range attrs.Keys() {
		value := attrs[key]
		if old, ok := m.attrs[key]; ok && reflect.DeepEqual(old, value) {
			continue
		}
		m.attrs[key] = value
		changed = append(changed, key)
	}

	if o.silent || len(changed) == 0 {
		return nil
	}
	for _, key := range changed {
		m.Trigger(EventChange + ":" + key)
	}
	m.Trigger(EventChange)
	return nil
}

// Unset removes key and notifies when it was present.
func (m *Model) Unset(key string, opts ...SetOption) error {
	if key == KeyCID {
		return errors.New(errors.ErrCodeReadOnly, "attribute %q is read-only", KeyCID)
	}
	if _, ok := m.attrs[key]; !ok {
		return nil
	}
	delete(m.attrs, key)

	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.silent {
		m.Trigger(EventChange + ":" + key)
		m.Trigger(EventChange)
	}
	return nil
}
