package vtree

import (
	"bytes"
	"html/template"
	"regexp"

	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
)

// Template renders an attribute snapshot into markup. It must be pure and
// deterministic for a given snapshot.
type Template func(attrs model.Attributes) (string, error)

// boundaryWhitespace matches whitespace runs that start the markup or a line,
// and runs that end the markup or a line.
var boundaryWhitespace = regexp.MustCompile(`(?:(?:^|\n)\s+|\s+(?:$|\n))`)

// Normalize strips whitespace runs at line boundaries so indentation in
// templates does not become text nodes.
func Normalize(markup string) string {
	return boundaryWhitespace.ReplaceAllString(markup, "")
}

// HTMLTemplate adapts an html/template source into a Template. The template
// executes with the attribute map as its data, so fields are referenced as
// {{.title}}.
func HTMLTemplate(name, src string) (Template, error) {
	t, err := template.New(name).Parse(src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTemplate, err, "parse template %q", name)
	}
	return func(attrs model.Attributes) (string, error) {
		var buf bytes.Buffer
		if err := t.Execute(&buf, map[string]any(attrs)); err != nil {
			return "", errors.Wrap(errors.ErrCodeTemplate, err, "execute template %q", name)
		}
		return buf.String(), nil
	}, nil
}

// MustHTMLTemplate is like HTMLTemplate but panics on error.
func MustHTMLTemplate(name, src string) Template {
	t, err := HTMLTemplate(name, src)
	if err != nil {
		panic(err)
	}
	return t
}

// Builder converts attribute snapshots into trees through a template.
// It holds no cache; the stored tree of each child lives in the container.
type Builder struct {
	Template Template
}

// NewBuilder creates a Builder for t.
func NewBuilder(t Template) *Builder {
	return &Builder{Template: t}
}

// Markup renders attrs and normalizes the result.
func (b *Builder) Markup(attrs model.Attributes) (string, error) {
	if b == nil || b.Template == nil {
		return "", errors.New(errors.ErrCodeTemplate, "no template configured")
	}
	markup, err := b.Template(attrs)
	if err != nil {
		if errors.GetCode(err) == "" {
			err = errors.Wrap(errors.ErrCodeTemplate, err, "render template")
		}
		return "", err
	}
	return Normalize(markup), nil
}

// Render renders attrs into a tree.
func (b *Builder) Render(attrs model.Attributes) (*Node, error) {
	markup, err := b.Markup(attrs)
	if err != nil {
		return nil, err
	}
	return Parse(markup)
}
