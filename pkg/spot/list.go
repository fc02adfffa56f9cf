package spot

import (
	"github.com/matzehuels/automation/pkg/composite"
	"github.com/matzehuels/automation/pkg/container"
	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/vtree"
)

// HeadingTemplate renders one heading of a List.
var HeadingTemplate = vtree.MustHTMLTemplate("heading", `<li class="spot-heading">{{.title}}</li>`)

// List displays a list of headings (key points) and behaves like <ul>.
type List struct {
	*composite.Root
	el *dom.Element
}

// NewList creates a list. Without a target it renders into a new <ul>.
func NewList(opts Options) (*List, error) {
	root, el, err := newRoot(opts, "ul", HeadingTemplate)
	if err != nil {
		return nil, err
	}
	return &List{Root: root, el: el}, nil
}

// Element returns the element the headings are mounted into.
func (l *List) Element() *dom.Element { return l.el }

// AddHeading appends a heading and returns its model.
func (l *List) AddHeading(title string) (*model.Model, error) {
	return l.Add(model.Attributes{"title": title})
}

// Headings returns the rendered heading texts in order.
func (l *List) Headings() []string {
	return container.Map(l.Container(), func(_ int, el *dom.Element) string {
		return el.TextContent()
	})
}
