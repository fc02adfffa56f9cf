package vtree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiffIdenticalIsEmpty(t *testing.T) {
	markups := []string{
		`<li>Hello</li>`,
		`<ul class="a"><li>a</li><li>b</li></ul>`,
		`<div><img src="x.png"><a href="/">home</a></div>`,
	}
	for _, m := range markups {
		if ps := Diff(MustParse(m), MustParse(m)); !ps.Empty() {
			t.Errorf("Diff(%q, same) = %v, want empty", m, ps)
		}
	}
}

func TestDiffTextUpdate(t *testing.T) {
	ps := Diff(MustParse(`<li>Hello</li>`), MustParse(`<li>World</li>`))
	want := PatchSet{{Op: OpText, Path: []int{0}, Value: "World"}}
	if diff := cmp.Diff(want, ps); diff != "" {
		t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
	}
}

func TestDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want PatchSet
	}{
		{
			name: "replace root on tag change",
			a:    `<li>a</li>`,
			b:    `<p>a</p>`,
			want: PatchSet{{Op: OpReplace, Path: []int{}, Node: MustParse(`<p>a</p>`)}},
		},
		{
			name: "attribute set change and remove",
			a:    `<a class="x" href="/a" title="t">a</a>`,
			b:    `<a href="/b" id="n" title="t">a</a>`,
			want: PatchSet{
				{Op: OpRemoveAttr, Path: []int{}, Name: "class"},
				{Op: OpSetAttr, Path: []int{}, Name: "href", Value: "/b"},
				{Op: OpSetAttr, Path: []int{}, Name: "id", Value: "n"},
			},
		},
		{
			name: "append children",
			a:    `<ul><li>a</li></ul>`,
			b:    `<ul><li>a</li><li>b</li><li>c</li></ul>`,
			want: PatchSet{
				{Op: OpInsert, Path: []int{}, Index: 1, Node: MustParse(`<li>b</li>`)},
				{Op: OpInsert, Path: []int{}, Index: 2, Node: MustParse(`<li>c</li>`)},
			},
		},
		{
			name: "trim children from the end",
			a:    `<ul><li>a</li><li>b</li><li>c</li></ul>`,
			b:    `<ul><li>a</li></ul>`,
			want: PatchSet{
				{Op: OpRemove, Path: []int{}, Index: 2},
				{Op: OpRemove, Path: []int{}, Index: 1},
			},
		},
		{
			name: "text to element",
			a:    `<li>a</li>`,
			b:    `<li><b>a</b></li>`,
			want: PatchSet{{Op: OpReplace, Path: []int{0}, Node: MustParse(`<b>a</b>`)}},
		},
		{
			name: "nested edits keep paths",
			a:    `<div><p>x</p><p><i>y</i></p></div>`,
			b:    `<div><p>x</p><p><i class="c">z</i></p></div>`,
			want: PatchSet{
				{Op: OpSetAttr, Path: []int{1, 0}, Name: "class", Value: "c"},
				{Op: OpText, Path: []int{1, 0, 0}, Value: "z"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(MustParse(tt.a), MustParse(tt.b))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiffEmptyIffEqual(t *testing.T) {
	trees := []*Node{
		MustParse(`<li>a</li>`),
		MustParse(`<li>b</li>`),
		MustParse(`<li class="x">a</li>`),
		MustParse(`<li><b>a</b></li>`),
		MustParse(`<ul><li>a</li></ul>`),
	}
	for i, a := range trees {
		for j, b := range trees {
			empty := Diff(a, b).Empty()
			if empty != Equal(a, b) {
				t.Errorf("trees %d,%d: Diff empty = %v, Equal = %v", i, j, empty, Equal(a, b))
			}
		}
	}
}

func TestDiffIsDeterministic(t *testing.T) {
	a := MustParse(`<div a="1" b="2" c="3"><p>x</p><p>y</p></div>`)
	b := MustParse(`<div c="4" d="5"><p>z</p></div>`)
	first := Diff(a, b)
	for range 10 {
		if diff := cmp.Diff(first, Diff(a, b)); diff != "" {
			t.Fatalf("Diff() not deterministic:\n%s", diff)
		}
	}
}

func TestPatchSetHelpers(t *testing.T) {
	ps := Diff(MustParse(`<ul><li>a</li><li>b</li></ul>`), MustParse(`<ul><li>x</li></ul>`))
	if ps.Count(OpText) != 1 || ps.Count(OpRemove) != 1 {
		t.Errorf("Count() mismatch for %v", ps)
	}
	if got := ps[0].String(); got != `text /0/0 "x"` {
		t.Errorf("String() = %q", got)
	}
	if got := OpInsert.String(); got != "insert" {
		t.Errorf("Op.String() = %q", got)
	}
}
