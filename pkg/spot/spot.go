// Package spot provides ready-made child kinds built on a composition root:
// a list of headings and a strip of news widgets.
//
// Both types embed *composite.Root, so Add, Remove, Composite and the rest of
// the root API are available directly.
package spot

import (
	"github.com/charmbracelet/log"

	"github.com/matzehuels/automation/pkg/composite"
	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/vtree"
)

// Options configures a List or News.
type Options struct {
	// Target receives the children. A fresh container element is created
	// when nil.
	Target *dom.Element

	// Kind supplies fetch and channel capabilities for the models.
	Kind *model.Kind

	// Template overrides the default markup.
	Template vtree.Template

	Logger *log.Logger

	// Root carries any further root settings. Its Target, Kind, Template and
	// Logger are overwritten by the fields above.
	Root composite.Config
}

func newRoot(opts Options, tag string, tpl vtree.Template) (*composite.Root, *dom.Element, error) {
	target := opts.Target
	if target == nil {
		target = dom.NewElement(tag)
	}
	if opts.Template != nil {
		tpl = opts.Template
	}
	cfg := opts.Root
	cfg.Target = target
	cfg.Kind = opts.Kind
	cfg.Template = tpl
	cfg.Logger = opts.Logger
	root, err := composite.NewRoot(cfg)
	if err != nil {
		return nil, nil, err
	}
	return root, target, nil
}
