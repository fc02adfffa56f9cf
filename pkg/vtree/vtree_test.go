package vtree

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already tight", "<li>Hello</li>", "<li>Hello</li>"},
		{"indented", "\n  <li>\n    Hello\n  </li>\n", "<li>Hello</li>"},
		{"trailing spaces", "<ul>   \n<li>a</li>\n</ul>", "<ul><li>a</li></ul>"},
		{"inner spaces kept", "<p>a b  c</p>", "<p>a b  c</p>"},
		{"leading tabs", "\t\t<p>x</p>", "<p>x</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	got, err := Parse(`<li class="spot" id="a">Hello <b>World</b><!-- note --></li>`)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := Element("li", []Attr{{"id", "a"}, {"class", "spot"}},
		Text("Hello "),
		Element("b", nil, Text("World")),
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseContextFreeElements(t *testing.T) {
	tests := []struct {
		markup string
		want   *Node
	}{
		{`<tr><td>x</td></tr>`, Element("tr", nil, Element("td", nil, Text("x")))},
		{`<td class="c">x</td>`, Element("td", []Attr{{"class", "c"}}, Text("x"))},
		{`<th>h</th>`, Element("th", nil, Text("h"))},
		{`<tbody><tr><td>x</td></tr></tbody>`, Element("tbody", nil, Element("tr", nil, Element("td", nil, Text("x"))))},
		{`<caption>c</caption>`, Element("caption", nil, Text("c"))},
		{`<option value="1">one</option>`, Element("option", []Attr{{"value", "1"}}, Text("one"))},
		{`<li>a</li>`, Element("li", nil, Text("a"))},
		{`plain`, Text("plain")},
	}
	for _, tt := range tests {
		t.Run(tt.markup, func(t *testing.T) {
			got, err := Parse(tt.markup)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRootCount(t *testing.T) {
	for _, markup := range []string{"", "<!-- only -->", "<li>a</li><li>b</li>"} {
		if _, err := Parse(markup); !errors.Is(err, errors.ErrCodeInvalidMarkup) {
			t.Errorf("Parse(%q) error = %v, want %s", markup, err, errors.ErrCodeInvalidMarkup)
		}
	}
}

func TestElementSortsAndDedupesAttrs(t *testing.T) {
	n := Element("A", []Attr{{"z", "1"}, {"a", "2"}, {"z", "3"}})
	if n.Tag != "a" {
		t.Errorf("Tag = %q, want lower case", n.Tag)
	}
	want := []Attr{{"a", "2"}, {"z", "1"}}
	if diff := cmp.Diff(want, n.Attrs); diff != "" {
		t.Errorf("Attrs mismatch (-want +got):\n%s", diff)
	}
	if v, ok := n.Attr("z"); !ok || v != "1" {
		t.Errorf("Attr(z) = %q, %v", v, ok)
	}
	if _, ok := n.Attr("missing"); ok {
		t.Error("Attr(missing) reported present")
	}
}

func TestEqual(t *testing.T) {
	a := MustParse(`<ul><li>a</li><li class="x">b</li></ul>`)
	b := MustParse(`<ul><li>a</li><li class="x">b</li></ul>`)
	c := MustParse(`<ul><li>a</li><li class="y">b</li></ul>`)

	if !Equal(a, b) {
		t.Error("identical markup should be Equal")
	}
	if Equal(a, c) {
		t.Error("different attribute values should not be Equal")
	}
	if !Equal(nil, nil) || Equal(a, nil) {
		t.Error("nil handling is wrong")
	}
}

func TestHTMLRoundTrip(t *testing.T) {
	markup := `<li class="spot"><a href="/x?a=1&amp;b=2">Hi &lt;3</a></li>`
	n := MustParse(markup)
	if got := HTML(n); got != markup {
		t.Errorf("HTML() = %q, want %q", got, markup)
	}
	if !Equal(n, MustParse(HTML(n))) {
		t.Error("re-parsing serialized markup changed the tree")
	}
}

func TestNodeHelpers(t *testing.T) {
	n := MustParse(`<ul><li>a</li><li><b>b</b>c</li></ul>`)
	if got := n.Count(); got != 7 {
		t.Errorf("Count() = %d, want 7", got)
	}
	if got := n.TextContent(); got != "abc" {
		t.Errorf("TextContent() = %q, want %q", got, "abc")
	}
	if b, ok := n.At([]int{1, 0}); !ok || b.Tag != "b" {
		t.Errorf("At([1 0]) = %v, %v", b, ok)
	}
	if _, ok := n.At([]int{5}); ok {
		t.Error("At() out of range reported ok")
	}
}

func TestBuilderRender(t *testing.T) {
	tmpl := MustHTMLTemplate("li", `
		<li class="spot">
			{{.title}}
		</li>
	`)
	b := NewBuilder(tmpl)

	got, err := b.Render(model.Attributes{"title": "Hello"})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if html := HTML(got); html != `<li class="spot">Hello</li>` {
		t.Errorf("Render() = %s", html)
	}

	escaped, err := b.Markup(model.Attributes{"title": "<script>"})
	if err != nil {
		t.Fatalf("Markup() error: %v", err)
	}
	if strings.Contains(escaped, "<script>") {
		t.Errorf("Markup() did not escape attributes: %s", escaped)
	}
}

func TestBuilderErrors(t *testing.T) {
	var b *Builder
	if _, err := b.Render(nil); !errors.Is(err, errors.ErrCodeTemplate) {
		t.Errorf("nil builder error = %v, want %s", err, errors.ErrCodeTemplate)
	}

	if _, err := HTMLTemplate("bad", "{{.title"); !errors.Is(err, errors.ErrCodeTemplate) {
		t.Errorf("HTMLTemplate() error = %v, want %s", err, errors.ErrCodeTemplate)
	}

	fails := NewBuilder(func(model.Attributes) (string, error) {
		return "", errors.New(errors.ErrCodeInternal, "boom")
	})
	if _, err := fails.Render(nil); !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("coded template error should pass through, got %v", err)
	}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(MustParse(`<ul class="list"><li>a</li></ul>`))
	for _, want := range []string{"digraph vtree", `"/" -> "/0"`, `"/0" -> "/0/0"`, "class=list"} {
		if !strings.Contains(dot, want) {
			t.Errorf("ToDOT() missing %q:\n%s", want, dot)
		}
	}
}
