package composite

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoopFlushOrder(t *testing.T) {
	l := NewLoop(4)
	var got []int
	l.Post(func() { got = append(got, 1) })
	l.Post(func() {
		got = append(got, 2)
		l.Post(func() { got = append(got, 4) })
	})
	l.Post(func() { got = append(got, 3) })

	if l.Pending() != 3 {
		t.Errorf("Pending() = %d, want 3", l.Pending())
	}
	if n := l.Flush(); n != 4 {
		t.Errorf("Flush() = %d, want 4", n)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopDoInline(t *testing.T) {
	l := NewLoop(0)
	want := stderrors.New("boom")
	if err := l.Do(context.Background(), func() error { return want }); err != want {
		t.Errorf("Do() = %v, want %v", err, want)
	}
}

func TestLoopRun(t *testing.T) {
	l := NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan struct{})
	l.Post(func() { close(started) })
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	<-started

	if err := l.Run(ctx); err == nil {
		t.Error("second Run() should fail")
	}

	ran := 0
	for i := 0; i < 3; i++ {
		if err := l.Do(ctx, func() error { ran++; return nil }); err != nil {
			t.Fatalf("Do() error: %v", err)
		}
	}
	if ran != 3 {
		t.Errorf("ran = %d, want 3", ran)
	}

	l.Close()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run() = %v after Close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Close")
	}

	l.Post(func() { t.Error("callback ran after Close") })
	l.Flush()
}

func TestLoopRunCancel(t *testing.T) {
	l := NewLoop(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	if l.Running() {
		t.Error("Running() = true after Run returned")
	}
}

func TestLoopStartClaimsLoop(t *testing.T) {
	l := NewLoop(0)
	var got []string
	l.Post(func() { got = append(got, "queued") })

	errc := l.Start(context.Background())
	if !l.Running() {
		t.Fatal("Running() = false right after Start")
	}
	// Do must queue behind the earlier callback instead of running inline.
	if err := l.Do(context.Background(), func() error {
		got = append(got, "do")
		return nil
	}); err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if diff := cmp.Diff([]string{"queued", "do"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	if err := <-l.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	l.Close()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Start() result = %v after Close", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after Close")
	}
}
