package spot

import (
	"github.com/matzehuels/automation/pkg/composite"
	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/vtree"
)

// WidgetTemplate renders one news widget.
var WidgetTemplate = vtree.MustHTMLTemplate("widget", `
<div class="spot-news">
	<a href="{{.href}}">
		{{if .img}}<img src="{{.img}}" alt="">{{end}}
		<span class="title">{{.title}}</span>
	</a>
</div>
`)

// Widget is the data behind one news item.
type Widget struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Img   string `json:"img,omitempty"`
}

func (w Widget) attributes() model.Attributes {
	return model.Attributes{"title": w.Title, "href": w.Href, "img": w.Img}
}

// News displays news widgets, each a linked title with an optional image.
type News struct {
	*composite.Root
	el *dom.Element
}

// NewNews creates a news strip. Without a target it renders into a new
// <section>.
func NewNews(opts Options) (*News, error) {
	root, el, err := newRoot(opts, "section", WidgetTemplate)
	if err != nil {
		return nil, err
	}
	return &News{Root: root, el: el}, nil
}

// Element returns the element the widgets are mounted into.
func (n *News) Element() *dom.Element { return n.el }

// AddWidget appends a widget and returns its model. A widget needs a title.
func (n *News) AddWidget(w Widget) (*model.Model, error) {
	if w.Title == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "widget title is required")
	}
	return n.Add(w.attributes())
}

// Widgets returns the current data of every widget in order.
func (n *News) Widgets() []Widget {
	var out []Widget
	for _, m := range n.Container().Models() {
		out = append(out, Widget{
			Title: m.GetString("title"),
			Href:  m.GetString("href"),
			Img:   m.GetString("img"),
		})
	}
	return out
}
