// Package dom provides live elements: mutable, mounted nodes that a
// composition root patches in place.
//
// An [Element] is created from a virtual tree with [Create], appended to a
// render target with [Element.AppendChild] and updated with [Patch]. Elements
// may carry named methods ([Element.Define]) that are dispatched by
// capability, which is how a container calls "highlight" on every element
// that supports it.
//
// Elements are not safe for concurrent use.
package dom

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/automation/pkg/vtree"
)

// Method is a capability attached to an element.
type Method func(el *Element, args ...any) any

// Element is a live, mutable node. Text nodes have an empty Tag.
type Element struct {
	tag      string
	text     string
	isText   bool
	attrs    map[string]string
	children []*Element
	parent   *Element
	methods  map[string]Method
}

// NewElement creates an empty element with the given tag.
func NewElement(tag string) *Element {
	return &Element{tag: strings.ToLower(tag), attrs: make(map[string]string)}
}

// NewText creates a text node.
func NewText(s string) *Element {
	return &Element{isText: true, text: s}
}

// Create builds a live element tree from a virtual tree.
func Create(n *vtree.Node) *Element {
	if n == nil {
		return nil
	}
	if n.Kind == vtree.TextNode {
		return NewText(n.Text)
	}
	el := NewElement(n.Tag)
	for _, a := range n.Attrs {
		el.attrs[a.Name] = a.Value
	}
	for _, c := range n.Children {
		el.AppendChild(Create(c))
	}
	return el
}

// Tag returns the tag name, or "" for text nodes.
func (e *Element) Tag() string { return e.tag }

// IsText reports whether e is a text node.
func (e *Element) IsText() bool { return e.isText }

// Parent returns the parent element, or nil when detached.
func (e *Element) Parent() *Element { return e.parent }

// Children returns a copy of the child list.
func (e *Element) Children() []*Element { return slices.Clone(e.children) }

// ChildCount returns the number of children.
func (e *Element) ChildCount() int { return len(e.children) }

// Child returns child i, or nil when out of range.
func (e *Element) Child(i int) *Element {
	if i < 0 || i >= len(e.children) {
		return nil
	}
	return e.children[i]
}

// Index returns the position of e within its parent, or -1.
func (e *Element) Index() int {
	if e.parent == nil {
		return -1
	}
	return slices.Index(e.parent.children, e)
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// Attrs returns a copy of the attributes.
func (e *Element) Attrs() map[string]string { return maps.Clone(e.attrs) }

// SetAttr sets an attribute. It is a no-op on text nodes.
func (e *Element) SetAttr(name, value string) {
	if e.isText {
		return
	}
	e.attrs[name] = value
}

// RemoveAttr removes an attribute.
func (e *Element) RemoveAttr(name string) { delete(e.attrs, name) }

// Text returns the text of a text node.
func (e *Element) Text() string { return e.text }

// SetText replaces the text of a text node.
func (e *Element) SetText(s string) { e.text = s }

// TextContent concatenates all text in the subtree.
func (e *Element) TextContent() string {
	if e.isText {
		return e.text
	}
	var b strings.Builder
	for _, c := range e.children {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// AppendChild detaches c from any previous parent and appends it to e.
func (e *Element) AppendChild(c *Element) {
	e.InsertChild(len(e.children), c)
}

// InsertChild inserts c at index i, clamped to the valid range.
func (e *Element) InsertChild(i int, c *Element) {
	if c == nil {
		return
	}
	c.Detach()
	i = max(0, min(i, len(e.children)))
	e.children = slices.Insert(e.children, i, c)
	c.parent = e
}

// RemoveChild removes c when it is a child of e and reports whether it was.
func (e *Element) RemoveChild(c *Element) bool {
	i := slices.Index(e.children, c)
	if i < 0 {
		return false
	}
	e.children = slices.Delete(e.children, i, i+1)
	c.parent = nil
	return true
}

// ReplaceChild swaps old for repl in place and reports whether old was found.
func (e *Element) ReplaceChild(old, repl *Element) bool {
	i := slices.Index(e.children, old)
	if i < 0 || repl == nil {
		return false
	}
	repl.Detach()
	e.children[i] = repl
	repl.parent = e
	old.parent = nil
	return true
}

// Detach removes e from its parent, if any.
func (e *Element) Detach() {
	if e.parent != nil {
		e.parent.RemoveChild(e)
	}
}

// Define attaches a named method to the element.
func (e *Element) Define(name string, fn Method) {
	if e.methods == nil {
		e.methods = make(map[string]Method)
	}
	e.methods[name] = fn
}

// Has reports whether the element exposes the named method.
func (e *Element) Has(name string) bool {
	_, ok := e.methods[name]
	return ok
}

// Call invokes the named method. ok is false when the element lacks it.
func (e *Element) Call(name string, args ...any) (result any, ok bool) {
	fn, ok := e.methods[name]
	if !ok {
		return nil, false
	}
	return fn(e, args...), true
}

// copyMethods carries capabilities over when a patch replaces an element.
func (e *Element) copyMethods(from *Element) {
	for name, fn := range from.methods {
		if !e.Has(name) {
			e.Define(name, fn)
		}
	}
}

// Snapshot converts the live subtree back into a virtual tree.
func (e *Element) Snapshot() *vtree.Node {
	if e.isText {
		return vtree.Text(e.text)
	}
	attrs := make([]vtree.Attr, 0, len(e.attrs))
	for name, value := range e.attrs {
		attrs = append(attrs, vtree.Attr{Name: name, Value: value})
	}
	children := make([]*vtree.Node, 0, len(e.children))
	for _, c := range e.children {
		children = append(children, c.Snapshot())
	}
	return vtree.Element(e.tag, attrs, children...)
}

// HTML serializes the subtree.
func (e *Element) HTML() string {
	return vtree.HTML(e.Snapshot())
}

// InnerHTML serializes the children of e.
func (e *Element) InnerHTML() string {
	var b strings.Builder
	for _, c := range e.children {
		b.WriteString(c.HTML())
	}
	return b.String()
}
