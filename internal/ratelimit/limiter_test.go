package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterObserveIncrementsWithinWindow(t *testing.T) {
	l := New(time.Minute, 10)
	if got := l.Observe("k"); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := l.Observe("k"); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestLimiterObserveRotatesWindow(t *testing.T) {
	l := New(10*time.Millisecond, 10)
	l.Observe("k")
	l.Observe("k")
	time.Sleep(20 * time.Millisecond)
	if got := l.Observe("k"); got != 1 {
		t.Fatalf("expected window to rotate back to 1, got %d", got)
	}
}

func TestLimiterRateWithoutIncrementing(t *testing.T) {
	l := New(time.Minute, 10)
	l.Observe("k")
	l.Observe("k")
	if got := l.Rate("k"); got != 2 {
		t.Fatalf("expected rate 2, got %v", got)
	}
	if got := l.Rate("k"); got != 2 {
		t.Fatalf("expected Rate to not increment, got %v", got)
	}
}

func TestLimiterRateUnknownKey(t *testing.T) {
	l := New(time.Minute, 10)
	if got := l.Rate("missing"); got != 0 {
		t.Fatalf("expected 0 for unknown key, got %v", got)
	}
}

func TestRegistryAddAndGet(t *testing.T) {
	r := NewRegistry()
	if !r.Add("app1", 60, 100) {
		t.Fatal("expected add to succeed")
	}
	if r.Add("app1", 60, 100) {
		t.Fatal("expected duplicate add to fail")
	}
	app, ok := r.Get("app1")
	if !ok {
		t.Fatal("expected app1 to be found")
	}
	if app.Limit != 100 || app.LimitIntervalSeconds != 60 {
		t.Fatalf("unexpected app fields: %+v", app)
	}
}

func TestRegistryUpdateUnknownFails(t *testing.T) {
	r := NewRegistry()
	if r.Update("missing", 1, 1) {
		t.Fatal("expected update of unknown app to fail")
	}
}

func TestRegistryUpdateReplacesLimiter(t *testing.T) {
	r := NewRegistry()
	r.Add("app1", 60, 1)
	app, _ := r.Get("app1")
	app.Observe()

	if !r.Update("app1", 60, 5) {
		t.Fatal("expected update to succeed")
	}
	updated, _ := r.Get("app1")
	if updated.Rate() != 0 {
		t.Fatalf("expected update to reset counters, got rate %v", updated.Rate())
	}
	if updated.Limit != 5 {
		t.Fatalf("expected new limit 5, got %d", updated.Limit)
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	r.Add("app1", 60, 1)
	r.Remove("app1")
	if _, ok := r.Get("app1"); ok {
		t.Fatal("expected app1 removed")
	}
	r.Remove("app1")
}

func TestApplicationObserveIncrementsAcrossCalls(t *testing.T) {
	r := NewRegistry()
	r.Add("app1", 60, 100)
	app, _ := r.Get("app1")

	if got := app.Observe(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := app.Observe(); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := app.Rate(); got != 2 {
		t.Fatalf("expected rate 2, got %v", got)
	}
}
