package container

import "github.com/matzehuels/automation/pkg/dom"

// Elements returns the live elements in insertion order.
func (c *Container) Elements() []*dom.Element {
	out := make([]*dom.Element, 0, len(c.order))
	for _, cid := range c.order {
		out = append(out, c.entries[cid].Element)
	}
	return out
}

// ForEach calls fn for every element in insertion order. The order is
// captured first, so fn may remove entries.
func (c *Container) ForEach(fn func(cid int, el *dom.Element)) {
	for _, cid := range c.CIDs() {
		if e, ok := c.entries[cid]; ok {
			fn(cid, e.Element)
		}
	}
}

// Map collects fn over every element in insertion order.
func Map[T any](c *Container, fn func(cid int, el *dom.Element) T) []T {
	out := make([]T, 0, c.Len())
	c.ForEach(func(cid int, el *dom.Element) {
		out = append(out, fn(cid, el))
	})
	return out
}

// Filter returns the cids whose element satisfies keep.
func (c *Container) Filter(keep func(cid int, el *dom.Element) bool) []int {
	var out []int
	c.ForEach(func(cid int, el *dom.Element) {
		if keep(cid, el) {
			out = append(out, cid)
		}
	})
	return out
}

// Find returns the first cid whose element satisfies match.
func (c *Container) Find(match func(cid int, el *dom.Element) bool) (int, bool) {
	for _, cid := range c.order {
		if match(cid, c.entries[cid].Element) {
			return cid, true
		}
	}
	return 0, false
}

// CallAll invokes method on every element that defines it and returns how
// many were invoked. Elements without the method are skipped.
func (c *Container) CallAll(method string, args ...any) int {
	n := 0
	c.ForEach(func(_ int, el *dom.Element) {
		if _, ok := el.Call(method, args...); ok {
			n++
		}
	})
	return n
}
