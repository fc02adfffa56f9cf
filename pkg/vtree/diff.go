package vtree

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Op is a structural edit operation.
type Op uint8

const (
	// OpReplace replaces the node at Path with Node.
	OpReplace Op = iota + 1
	// OpInsert inserts Node as child Index of the element at Path.
	OpInsert
	// OpRemove removes child Index of the element at Path.
	OpRemove
	// OpSetAttr sets attribute Name to Value on the element at Path.
	OpSetAttr
	// OpRemoveAttr removes attribute Name from the element at Path.
	OpRemoveAttr
	// OpText sets the text of the text node at Path to Value.
	OpText
)

var opNames = map[Op]string{
	OpReplace:    "replace",
	OpInsert:     "insert",
	OpRemove:     "remove",
	OpSetAttr:    "set-attr",
	OpRemoveAttr: "remove-attr",
	OpText:       "text",
}

// String returns the operation name.
func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Patch is a single edit.
type Patch struct {
	Op    Op
	Path  []int  // child indices from the root to the target node
	Index int    // child index for OpInsert and OpRemove
	Node  *Node  // new subtree for OpReplace and OpInsert
	Name  string // attribute name for OpSetAttr and OpRemoveAttr
	Value string // attribute value for OpSetAttr, text for OpText
}

// String renders the patch for logs and the diff command.
func (p Patch) String() string {
	path := "/" + joinPath(p.Path)
	switch p.Op {
	case OpReplace:
		return fmt.Sprintf("%s %s %s", p.Op, path, HTML(p.Node))
	case OpInsert:
		return fmt.Sprintf("%s %s[%d] %s", p.Op, path, p.Index, HTML(p.Node))
	case OpRemove:
		return fmt.Sprintf("%s %s[%d]", p.Op, path, p.Index)
	case OpSetAttr:
		return fmt.Sprintf("%s %s %s=%q", p.Op, path, p.Name, p.Value)
	case OpRemoveAttr:
		return fmt.Sprintf("%s %s %s", p.Op, path, p.Name)
	case OpText:
		return fmt.Sprintf("%s %s %q", p.Op, path, p.Value)
	default:
		return fmt.Sprintf("%s %s", p.Op, path)
	}
}

func joinPath(path []int) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, "/")
}

// PatchSet is an ordered edit script.
type PatchSet []Patch

// Empty reports whether the set contains no edits.
func (ps PatchSet) Empty() bool { return len(ps) == 0 }

// Count returns the number of edits with the given op.
func (ps PatchSet) Count(op Op) int {
	n := 0
	for _, p := range ps {
		if p.Op == op {
			n++
		}
	}
	return n
}

// Differ computes the edit script between two trees.
type Differ interface {
	Diff(a, b *Node) PatchSet
}

// DifferFunc adapts a function to the Differ interface.
type DifferFunc func(a, b *Node) PatchSet

// Diff calls f(a, b).
func (f DifferFunc) Diff(a, b *Node) PatchSet { return f(a, b) }

// DefaultDiffer is the index-based structural differ.
var DefaultDiffer Differ = DifferFunc(Diff)

// Diff computes the edit script turning a into b. The result is empty exactly
// when Equal(a, b).
func Diff(a, b *Node) PatchSet {
	var ps PatchSet
	diffNode(a, b, nil, &ps)
	return ps
}

func diffNode(a, b *Node, path []int, ps *PatchSet) {
	switch {
	case a == nil && b == nil:
		return
	case a == nil || b == nil || a.Kind != b.Kind || (a.Kind == ElementNode && a.Tag != b.Tag):
		*ps = append(*ps, Patch{Op: OpReplace, Path: clonePath(path), Node: b})
		return
	case a.Kind == TextNode:
		if a.Text != b.Text {
			*ps = append(*ps, Patch{Op: OpText, Path: clonePath(path), Value: b.Text})
		}
		return
	}

	diffAttrs(a, b, path, ps)

	common := min(len(a.Children), len(b.Children))
	for i := 0; i < common; i++ {
		diffNode(a.Children[i], b.Children[i], append(path, i), ps)
	}
	for i := common; i < len(b.Children); i++ {
		*ps = append(*ps, Patch{Op: OpInsert, Path: clonePath(path), Index: i, Node: b.Children[i]})
	}
	// Trim from the end so earlier indices stay valid.
	for i := len(a.Children) - 1; i >= common; i-- {
		*ps = append(*ps, Patch{Op: OpRemove, Path: clonePath(path), Index: i})
	}
}

// diffAttrs emits attribute edits in name order; both lists are sorted.
func diffAttrs(a, b *Node, path []int, ps *PatchSet) {
	i, j := 0, 0
	for i < len(a.Attrs) || j < len(b.Attrs) {
		switch {
		case j >= len(b.Attrs) || (i < len(a.Attrs) && a.Attrs[i].Name < b.Attrs[j].Name):
			*ps = append(*ps, Patch{Op: OpRemoveAttr, Path: clonePath(path), Name: a.Attrs[i].Name})
			i++
		case i >= len(a.Attrs) || b.Attrs[j].Name < a.Attrs[i].Name:
			*ps = append(*ps, Patch{Op: OpSetAttr, Path: clonePath(path), Name: b.Attrs[j].Name, Value: b.Attrs[j].Value})
			j++
		default:
			if a.Attrs[i].Value != b.Attrs[j].Value {
				*ps = append(*ps, Patch{Op: OpSetAttr, Path: clonePath(path), Name: b.Attrs[j].Name, Value: b.Attrs[j].Value})
			}
			i++
			j++
		}
	}
}

func clonePath(path []int) []int {
	if len(path) == 0 {
		return []int{}
	}
	return slices.Clone(path)
}
