package composite

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/automation/pkg/container"
	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/observability"
	"github.com/matzehuels/automation/pkg/vtree"
)

// State is the reconciliation state of one child.
type State int

const (
	// Clean means the stored tree matches the last rendered model state.
	Clean State = iota
	// Dirty means a change notification fired and no composite ran since.
	Dirty
)

func (s State) String() string {
	if s == Dirty {
		return "dirty"
	}
	return "clean"
}

// Engine runs render, diff and patch for one child at a time.
type Engine struct {
	builder *vtree.Builder
	differ  vtree.Differ
	patcher dom.Patcher
	logger  *log.Logger
	states  map[int]State
}

// NewEngine creates an engine. Nil differ and patcher select the defaults.
func NewEngine(b *vtree.Builder, d vtree.Differ, p dom.Patcher, logger *log.Logger) *Engine {
	if d == nil {
		d = vtree.DefaultDiffer
	}
	if p == nil {
		p = dom.DefaultPatcher
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{builder: b, differ: d, patcher: p, logger: logger, states: make(map[int]State)}
}

// Builder returns the tree builder.
func (e *Engine) Builder() *vtree.Builder { return e.builder }

// MarkDirty records that cid's model changed.
func (e *Engine) MarkDirty(cid int) { e.states[cid] = Dirty }

// State returns the state of cid. Unknown children report Clean and false.
func (e *Engine) State(cid int) (State, bool) {
	s, ok := e.states[cid]
	return s, ok
}

// Forget drops the state of a removed child.
func (e *Engine) Forget(cid int) { delete(e.states, cid) }

// Mount renders the initial tree and element for a new child.
func (e *Engine) Mount(cid int, attrs model.Attributes) (*vtree.Node, *dom.Element, error) {
	start := time.Now()
	tree, err := e.builder.Render(attrs)
	observability.Render().OnMount(context.Background(), cid, time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}
	e.states[cid] = Clean
	return tree, dom.Create(tree), nil
}

// Composite re-renders cid from its model's current attributes, patches the
// stored element and stores the fresh tree and the authoritative element.
//
// It fails with UNKNOWN_CHILD when cid has no element. A render failure
// leaves the entry untouched and the child Dirty. A patch that does not fit
// the live tree is recovered by rebuilding the element from the fresh tree;
// the entry is consistent afterwards and the INVALID_PATCH error is returned
// alongside the patch set.
func (e *Engine) Composite(c *container.Container, cid int) (vtree.PatchSet, error) {
	entry, ok := c.Entry(cid)
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownChild, "no element for cid %d", cid)
	}

	start := time.Now()
	ps, err := e.composite(c, entry)
	observability.Render().OnComposite(context.Background(), cid, len(ps), time.Since(start), err)
	if err == nil {
		e.logger.Debug("composite", "cid", cid, "patches", len(ps))
	}
	return ps, err
}

func (e *Engine) composite(c *container.Container, entry container.Entry) (vtree.PatchSet, error) {
	fresh, err := e.builder.Render(entry.Model.Attributes())
	if err != nil {
		e.states[entry.CID] = Dirty
		return nil, err
	}

	ps := e.differ.Diff(entry.Tree, fresh)
	el, patchErr := e.patcher.Patch(entry.Element, ps)
	if patchErr != nil {
		e.logger.Warn("patch failed, rebuilding element", "cid", entry.CID, "err", patchErr)
		el = dom.Rebuild(el, fresh)
	}
	if err := c.Update(entry.CID, fresh, el); err != nil {
		return ps, err
	}
	e.states[entry.CID] = Clean
	return ps, patchErr
}
