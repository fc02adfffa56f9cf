// Package container provides the keyed child store of a composition root.
//
// A [Container] maps a child identifier (cid) to an [Entry] holding the
// child's model, stored virtual tree, live element and optional realtime
// channel. Iteration follows cid insertion order. Every mutation is
// all-or-nothing: an entry is either fully present or fully absent.
//
// The container is owned by a single control thread and does no locking.
package container

import (
	"slices"

	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/vtree"
)

// Channel is the part of a realtime channel the container manages.
type Channel interface {
	Close() error
}

// Releaser detaches a binding, such as a model change subscription.
type Releaser interface {
	Release()
}

// Entry is everything stored for one child.
type Entry struct {
	CID     int
	Model   *model.Model
	Tree    *vtree.Node
	Element *dom.Element
	Channel Channel  // optional
	Binding Releaser // optional; released on removal
}

// Container is the keyed child store.
type Container struct {
	entries map[int]*Entry
	order   []int
}

// New creates an empty container.
func New() *Container {
	return &Container{entries: make(map[int]*Entry)}
}

// Add registers a child. It fails with DUPLICATE_KEY when cid is present.
func (c *Container) Add(cid int, m *model.Model, tree *vtree.Node, el *dom.Element, ch Channel) error {
	return c.AddEntry(Entry{CID: cid, Model: m, Tree: tree, Element: el, Channel: ch})
}

// AddEntry registers a fully populated entry.
func (c *Container) AddEntry(e Entry) error {
	if _, ok := c.entries[e.CID]; ok {
		return errors.New(errors.ErrCodeDuplicateKey, "cid %d already registered", e.CID)
	}
	if e.Model == nil || e.Tree == nil || e.Element == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cid %d: model, tree and element are required", e.CID)
	}
	stored := e
	c.entries[e.CID] = &stored
	c.order = append(c.order, e.CID)
	return nil
}

// Remove deletes a child, releasing its binding and closing its channel.
// It reports whether the cid was present; removing twice is safe.
func (c *Container) Remove(cid int) bool {
	e, ok := c.entries[cid]
	if !ok {
		return false
	}
	delete(c.entries, cid)
	c.order = slices.DeleteFunc(c.order, func(x int) bool { return x == cid })

	if e.Binding != nil {
		e.Binding.Release()
	}
	if e.Channel != nil {
		_ = e.Channel.Close()
	}
	return true
}

// Len returns the number of children.
func (c *Container) Len() int { return len(c.order) }

// Has reports whether cid is registered.
func (c *Container) Has(cid int) bool {
	_, ok := c.entries[cid]
	return ok
}

// CIDs returns the registered cids in insertion order.
func (c *Container) CIDs() []int { return slices.Clone(c.order) }

// Entry returns a copy of the entry for cid.
func (c *Container) Entry(cid int) (Entry, bool) {
	e, ok := c.entries[cid]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Element returns the live element for cid.
func (c *Container) Element(cid int) (*dom.Element, bool) {
	if e, ok := c.entries[cid]; ok {
		return e.Element, true
	}
	return nil, false
}

// Tree returns the stored virtual tree for cid.
func (c *Container) Tree(cid int) (*vtree.Node, bool) {
	if e, ok := c.entries[cid]; ok {
		return e.Tree, true
	}
	return nil, false
}

// Model returns the model for cid.
func (c *Container) Model(cid int) (*model.Model, bool) {
	if e, ok := c.entries[cid]; ok {
		return e.Model, true
	}
	return nil, false
}

// Channel returns the realtime channel for cid, if the child has one.
func (c *Container) Channel(cid int) (Channel, bool) {
	if e, ok := c.entries[cid]; ok && e.Channel != nil {
		return e.Channel, true
	}
	return nil, false
}

// UpdateTree replaces the stored tree. It fails with UNKNOWN_KEY when cid is
// absent.
func (c *Container) UpdateTree(cid int, tree *vtree.Node) error {
	e, ok := c.entries[cid]
	if !ok {
		return errors.New(errors.ErrCodeUnknownKey, "cid %d not registered", cid)
	}
	if tree == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cid %d: nil tree", cid)
	}
	e.Tree = tree
	return nil
}

// UpdateElement replaces the stored element. It fails with UNKNOWN_KEY when
// cid is absent.
func (c *Container) UpdateElement(cid int, el *dom.Element) error {
	e, ok := c.entries[cid]
	if !ok {
		return errors.New(errors.ErrCodeUnknownKey, "cid %d not registered", cid)
	}
	if el == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cid %d: nil element", cid)
	}
	e.Element = el
	return nil
}

// Update replaces tree and element together.
func (c *Container) Update(cid int, tree *vtree.Node, el *dom.Element) error {
	e, ok := c.entries[cid]
	if !ok {
		return errors.New(errors.ErrCodeUnknownKey, "cid %d not registered", cid)
	}
	if tree == nil || el == nil {
		return errors.New(errors.ErrCodeInvalidInput, "cid %d: nil tree or element", cid)
	}
	e.Tree = tree
	e.Element = el
	return nil
}

// SetBinding records the releaser for cid's change subscription.
func (c *Container) SetBinding(cid int, b Releaser) error {
	e, ok := c.entries[cid]
	if !ok {
		return errors.New(errors.ErrCodeUnknownKey, "cid %d not registered", cid)
	}
	e.Binding = b
	return nil
}

// SetChannel records the realtime channel for cid.
func (c *Container) SetChannel(cid int, ch Channel) error {
	e, ok := c.entries[cid]
	if !ok {
		return errors.New(errors.ErrCodeUnknownKey, "cid %d not registered", cid)
	}
	e.Channel = ch
	return nil
}

// Models returns the models in insertion order.
func (c *Container) Models() []*model.Model {
	out := make([]*model.Model, 0, len(c.order))
	for _, cid := range c.order {
		out = append(out, c.entries[cid].Model)
	}
	return out
}
