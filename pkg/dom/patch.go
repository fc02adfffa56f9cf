package dom

import (
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/vtree"
)

// Patcher applies an edit script to a live element.
type Patcher interface {
	Patch(el *Element, ps vtree.PatchSet) (*Element, error)
}

// PatcherFunc adapts a function to the Patcher interface.
type PatcherFunc func(el *Element, ps vtree.PatchSet) (*Element, error)

// Patch calls f(el, ps).
func (f PatcherFunc) Patch(el *Element, ps vtree.PatchSet) (*Element, error) { return f(el, ps) }

// DefaultPatcher applies patches in place with [Patch].
var DefaultPatcher Patcher = PatcherFunc(Patch)

// Patch applies ps to root in order and returns the authoritative root
// handle. The handle differs from root only when a patch replaced the root
// itself; in that case the new element takes root's place in its parent and
// inherits its methods. An empty patch set returns root unchanged.
//
// Patching stops at the first patch that does not fit the live tree; edits
// applied before it remain.
func Patch(root *Element, ps vtree.PatchSet) (*Element, error) {
	if root == nil {
		return nil, errors.New(errors.ErrCodeInvalidPatch, "nil element")
	}
	for i, p := range ps {
		next, err := apply(root, p)
		if err != nil {
			return root, errors.Wrap(errors.ErrCodeInvalidPatch, err, "patch %d (%s)", i, p.Op)
		}
		root = next
	}
	return root, nil
}

func apply(root *Element, p vtree.Patch) (*Element, error) {
	target := resolve(root, p.Path)
	if target == nil {
		return root, errors.New(errors.ErrCodeInvalidPatch, "no node at path %v", p.Path)
	}

	switch p.Op {
	case vtree.OpReplace:
		repl := Create(p.Node)
		if repl == nil {
			return root, errors.New(errors.ErrCodeInvalidPatch, "replace with nil node")
		}
		if target == root {
			if parent := root.parent; parent != nil {
				parent.ReplaceChild(root, repl)
			}
			repl.copyMethods(root)
			return repl, nil
		}
		target.parent.ReplaceChild(target, repl)

	case vtree.OpInsert:
		if target.isText || p.Index < 0 || p.Index > len(target.children) {
			return root, errors.New(errors.ErrCodeInvalidPatch, "cannot insert at %v[%d]", p.Path, p.Index)
		}
		target.InsertChild(p.Index, Create(p.Node))

	case vtree.OpRemove:
		child := target.Child(p.Index)
		if child == nil {
			return root, errors.New(errors.ErrCodeInvalidPatch, "no child at %v[%d]", p.Path, p.Index)
		}
		target.RemoveChild(child)

	case vtree.OpSetAttr:
		if target.isText {
			return root, errors.New(errors.ErrCodeInvalidPatch, "set attribute on text node at %v", p.Path)
		}
		target.SetAttr(p.Name, p.Value)

	case vtree.OpRemoveAttr:
		target.RemoveAttr(p.Name)

	case vtree.OpText:
		if !target.isText {
			return root, errors.New(errors.ErrCodeInvalidPatch, "set text on element at %v", p.Path)
		}
		target.SetText(p.Value)

	default:
		return root, errors.New(errors.ErrCodeInvalidPatch, "unknown op %s", p.Op)
	}
	return root, nil
}

func resolve(root *Element, path []int) *Element {
	cur := root
	for _, i := range path {
		cur = cur.Child(i)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Rebuild creates a fresh element from tree and puts it in old's place,
// carrying over old's methods. It is the recovery path when a patch set does
// not fit the live tree.
func Rebuild(old *Element, tree *vtree.Node) *Element {
	repl := Create(tree)
	if repl == nil || old == nil {
		return repl
	}
	if parent := old.parent; parent != nil {
		parent.ReplaceChild(old, repl)
	}
	repl.copyMethods(old)
	return repl
}
