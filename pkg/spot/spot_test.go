package spot

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/errors"
)

func quiet() *log.Logger { return log.NewWithOptions(io.Discard, log.Options{}) }

func TestList(t *testing.T) {
	l, err := NewList(Options{Logger: quiet()})
	if err != nil {
		t.Fatalf("NewList() error: %v", err)
	}
	defer l.Close()

	for _, title := range []string{"Fast", "Small", "Keyed"} {
		if _, err := l.AddHeading(title); err != nil {
			t.Fatal(err)
		}
	}
	m, _ := l.Model(1)
	_ = m.Set("title", "Tiny")

	if diff := cmp.Diff([]string{"Fast", "Tiny", "Keyed"}, l.Headings()); diff != "" {
		t.Errorf("headings mismatch (-want +got):\n%s", diff)
	}
	want := `<ul><li class="spot-heading">Fast</li><li class="spot-heading">Tiny</li><li class="spot-heading">Keyed</li></ul>`
	if got := l.Element().HTML(); got != want {
		t.Errorf("HTML() = %s", got)
	}
}

func TestListTarget(t *testing.T) {
	target := dom.NewElement("ol")
	l, err := NewList(Options{Target: target, Logger: quiet()})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	_, _ = l.AddHeading("a")
	if l.Element() != target || target.ChildCount() != 1 {
		t.Error("headings not mounted into the given target")
	}
}

func TestNews(t *testing.T) {
	n, err := NewNews(Options{Logger: quiet()})
	if err != nil {
		t.Fatalf("NewNews() error: %v", err)
	}
	defer n.Close()

	m, err := n.AddWidget(Widget{Title: "Launch", Href: "/launch", Img: "/l.png"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := n.AddWidget(Widget{Title: "Plain", Href: "/plain"}); err != nil {
		t.Fatal(err)
	}

	first := n.Element().Child(0)
	if cls, _ := first.Attr("class"); cls != "spot-news" {
		t.Errorf("widget class = %q", cls)
	}
	link := first.Child(0)
	if href, _ := link.Attr("href"); href != "/launch" {
		t.Errorf("href = %q", href)
	}
	if link.ChildCount() != 2 || link.Child(0).Tag() != "img" {
		t.Errorf("first widget should have an image, got %s", first.HTML())
	}
	if plain := n.Element().Child(1).Child(0); plain.ChildCount() != 1 {
		t.Errorf("widget without image = %s", plain.HTML())
	}

	_ = m.Set("title", "Landed")
	if got := first.TextContent(); got != "Landed" {
		t.Errorf("TextContent() = %q after update", got)
	}

	want := []Widget{{Title: "Landed", Href: "/launch", Img: "/l.png"}, {Title: "Plain", Href: "/plain"}}
	if diff := cmp.Diff(want, n.Widgets()); diff != "" {
		t.Errorf("widgets mismatch (-want +got):\n%s", diff)
	}
}

func TestNewsRequiresTitle(t *testing.T) {
	n, _ := NewNews(Options{Logger: quiet()})
	defer n.Close()
	if _, err := n.AddWidget(Widget{Href: "/x"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("AddWidget() error = %v", err)
	}
	if n.Len() != 0 {
		t.Error("invalid widget was added")
	}
}
