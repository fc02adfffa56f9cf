package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestWatchModel(refreshes *int) WatchModel {
	snapshot := func(context.Context) snapshotMsg {
		return snapshotMsg{html: "<ul><li>x</li></ul>", children: 1}
	}
	return NewWatchModel("127.0.0.1:8080", 0, snapshot, func() { *refreshes++ })
}

func TestWatchModelUpdate(t *testing.T) {
	refreshes := 0
	var m tea.Model = newTestWatchModel(&refreshes)

	m, cmd := m.Update(snapshotMsg{html: "<ul><li>Hello</li></ul>", children: 1})
	if cmd == nil {
		t.Error("snapshot should schedule the next poll")
	}
	m, _ = m.Update(compositeMsg{cid: 0, patches: 2, duration: time.Millisecond})
	m, _ = m.Update(compositeMsg{cid: 1, patches: 1, err: errors.New("boom")})
	m, _ = m.Update(logMsg("WARN refetch failed\n"))
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})

	wm := m.(WatchModel)
	if wm.composites != 2 || wm.patches != 3 {
		t.Errorf("composites=%d patches=%d", wm.composites, wm.patches)
	}
	if refreshes != 1 {
		t.Errorf("refresh called %d times", refreshes)
	}

	view := wm.View()
	for _, want := range []string{"<ul><li>Hello</li></ul>", "1 children", "composite cid=0 patches=2", "boom", "refetch failed", "refresh requested"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestWatchModelEventsBounded(t *testing.T) {
	refreshes := 0
	var m tea.Model = newTestWatchModel(&refreshes)
	for i := 0; i < maxEvents*2; i++ {
		m, _ = m.Update(logMsg("line"))
	}
	if n := len(m.(WatchModel).events); n != maxEvents {
		t.Errorf("events = %d, want %d", n, maxEvents)
	}
}

func TestWatchModelQuit(t *testing.T) {
	refreshes := 0
	m := newTestWatchModel(&refreshes)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not produce tea.QuitMsg")
	}
}

func TestWatchModelScheduledRefresh(t *testing.T) {
	refreshes := 0
	m := newTestWatchModel(&refreshes)
	m.Interval = time.Minute
	_, cmd := m.Update(refreshTickMsg{})
	if refreshes != 1 || cmd == nil {
		t.Errorf("scheduled refresh: refreshes=%d cmd=%v", refreshes, cmd != nil)
	}
}
