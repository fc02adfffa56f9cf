package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTrigger(t *testing.T) {
	b := New()
	var got []string
	b.On("refresh", func(args ...any) { got = append(got, "first") })
	b.On("refresh", func(args ...any) { got = append(got, args[0].(string)) })
	b.On("other", func(args ...any) { t.Error("unrelated handler ran") })

	if n := b.Trigger("refresh", "second"); n != 2 {
		t.Errorf("Trigger() = %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"first", "second"}, got); diff != "" {
		t.Errorf("handler order mismatch (-want +got):\n%s", diff)
	}
	if n := b.Trigger("missing"); n != 0 {
		t.Errorf("Trigger(missing) = %d, want 0", n)
	}
}

func TestRelease(t *testing.T) {
	b := New()
	calls := 0
	s := b.On(ForceUpdateAll, func(...any) { calls++ })
	b.Trigger(ForceUpdateAll)
	s.Release()
	s.Release()
	b.Trigger(ForceUpdateAll)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if b.Listeners(ForceUpdateAll) != 0 {
		t.Errorf("Listeners() = %d after release", b.Listeners(ForceUpdateAll))
	}
}

func TestReleaseDuringTrigger(t *testing.T) {
	b := New()
	var second *Subscription
	b.On("x", func(...any) { second.Release() })
	calls := 0
	second = b.On("x", func(...any) { calls++ })

	// The snapshot taken by Trigger still includes the second handler.
	b.Trigger("x")
	b.Trigger("x")
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestClose(t *testing.T) {
	b := New()
	b.On("x", func(...any) { t.Error("handler ran after Close") })
	b.Close()

	if n := b.Trigger("x"); n != 0 {
		t.Errorf("Trigger() after Close = %d", n)
	}
	b.On("x", func(...any) { t.Error("handler bound after Close ran") })
	b.Trigger("x")
}
