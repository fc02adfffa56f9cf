package vtree

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/matzehuels/automation/pkg/errors"
)

// Parse converts markup into a tree. The markup must contain exactly one
// top-level node; comments and doctypes are dropped.
//
// Parsing happens in a <template> context, which accepts any element at the
// top level, so table parts such as <tr> or <td> keep their structure.
func Parse(markup string) (*Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "template", DataAtom: atom.Template}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidMarkup, err, "parse markup")
	}

	var roots []*Node
	for _, hn := range nodes {
		if n := convert(hn); n != nil {
			roots = append(roots, n)
		}
	}

	switch len(roots) {
	case 0:
		return nil, errors.New(errors.ErrCodeInvalidMarkup, "markup has no root node")
	case 1:
		return roots[0], nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidMarkup, "markup has %d root nodes, want 1", len(roots))
	}
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level templates.
func MustParse(markup string) *Node {
	n, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return n
}

func convert(hn *html.Node) *Node {
	switch hn.Type {
	case html.TextNode:
		return Text(hn.Data)
	case html.ElementNode:
		attrs := make([]Attr, 0, len(hn.Attr))
		for _, a := range hn.Attr {
			name := a.Key
			if a.Namespace != "" {
				name = a.Namespace + ":" + a.Key
			}
			attrs = append(attrs, Attr{Name: name, Value: a.Val})
		}
		var children []*Node
		for c := hn.FirstChild; c != nil; c = c.NextSibling {
			if n := convert(c); n != nil {
				children = append(children, n)
			}
		}
		return Element(hn.Data, attrs, children...)
	default:
		return nil
	}
}

// HTML serializes n back into markup.
func HTML(n *Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	_ = html.Render(&buf, toHTMLNode(n))
	return buf.String()
}

func toHTMLNode(n *Node) *html.Node {
	if n.Kind == TextNode {
		return &html.Node{Type: html.TextNode, Data: n.Text}
	}
	hn := &html.Node{
		Type:     html.ElementNode,
		Data:     n.Tag,
		DataAtom: atom.Lookup([]byte(n.Tag)),
	}
	for _, a := range n.Attrs {
		hn.Attr = append(hn.Attr, html.Attribute{Key: a.Name, Val: a.Value})
	}
	for _, c := range n.Children {
		hn.AppendChild(toHTMLNode(c))
	}
	return hn
}
