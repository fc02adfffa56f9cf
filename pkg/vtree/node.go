// Package vtree provides the virtual tree: an immutable, structurally
// comparable representation of rendered markup.
//
// # Pipeline
//
// A composition root turns model attributes into a tree in three steps:
//
//	markup, _ := template(attrs)   // Template
//	markup = Normalize(markup)     // strip whitespace runs at line boundaries
//	tree, _ := Parse(markup)       // golang.org/x/net/html fragment parse
//
// [Builder] bundles the three. Two trees built from the same attributes are
// [Equal] and [Diff] returns an empty [PatchSet] for them.
//
// # Diffing
//
// [Diff] computes an ordered edit script. Patches address nodes by a path of
// child indices from the root; applying the patches in order keeps every path
// valid. The algorithm is index based: it compares children position by
// position, then appends or trims the tail. Any [Differ] can replace it.
//
// Trees must not be mutated after construction. The exported fields exist for
// reading and for building trees in tests.
package vtree

import (
	"cmp"
	"slices"
	"strings"
)

// Kind distinguishes element nodes from text nodes.
type Kind uint8

const (
	ElementNode Kind = iota + 1
	TextNode
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	default:
		return "invalid"
	}
}

// Attr is a single element attribute.
type Attr struct {
	Name  string
	Value string
}

// Node is a virtual tree node.
type Node struct {
	Kind     Kind
	Tag      string  // element tag name, lower case
	Attrs    []Attr  // sorted by name, unique
	Children []*Node // element children in document order
	Text     string  // text content for text nodes
}

// Element builds an element node. Attributes are copied and sorted by name;
// for duplicate names the first occurrence wins.
func Element(tag string, attrs []Attr, children ...*Node) *Node {
	sorted := make([]Attr, 0, len(attrs))
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		sorted = append(sorted, a)
	}
	slices.SortFunc(sorted, func(a, b Attr) int { return cmp.Compare(a.Name, b.Name) })
	return &Node{
		Kind:     ElementNode,
		Tag:      strings.ToLower(tag),
		Attrs:    sorted,
		Children: children,
	}
}

// Text builds a text node.
func Text(s string) *Node {
	return &Node{Kind: TextNode, Text: s}
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n != nil && n.Kind == TextNode }

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	i, ok := slices.BinarySearchFunc(n.Attrs, name, func(a Attr, name string) int {
		return cmp.Compare(a.Name, name)
	})
	if !ok {
		return "", false
	}
	return n.Attrs[i].Value, true
}

// At returns the node reached by following path from n.
func (n *Node) At(path []int) (*Node, bool) {
	cur := n
	for _, i := range path {
		if cur == nil || i < 0 || i >= len(cur.Children) {
			return nil, false
		}
		cur = cur.Children[i]
	}
	return cur, cur != nil
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.Count()
	}
	return total
}

// TextContent concatenates all text in the subtree.
func (n *Node) TextContent() string {
	if n == nil {
		return ""
	}
	if n.Kind == TextNode {
		return n.Text
	}
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(c.TextContent())
	}
	return b.String()
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if !sameNode(a, b) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// sameNode compares the node itself, ignoring children.
func sameNode(a, b *Node) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == TextNode {
		return a.Text == b.Text
	}
	return a.Tag == b.Tag && slices.Equal(a.Attrs, b.Attrs)
}
