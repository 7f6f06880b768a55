package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAddSpawnsTask(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var ran int32
	s.Add("x", func(ctx context.Context) {
		atomic.StoreInt32(&ran, 1)
		<-ctx.Done()
	})

	waitFor(t, func() bool { return atomic.LoadInt32(&ran) == 1 })
	waitFor(t, func() bool { return len(s.Keys()) == 1 })
}

func TestAddSupersedesCancelsPrevious(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var firstCancelled int32
	s.Add("x", func(ctx context.Context) {
		<-ctx.Done()
		atomic.StoreInt32(&firstCancelled, 1)
	})
	waitFor(t, func() bool { return len(s.Keys()) == 1 })

	var secondRunning int32
	s.Add("x", func(ctx context.Context) {
		atomic.StoreInt32(&secondRunning, 1)
		<-ctx.Done()
	})

	waitFor(t, func() bool { return atomic.LoadInt32(&firstCancelled) == 1 })
	waitFor(t, func() bool { return atomic.LoadInt32(&secondRunning) == 1 })
	if keys := s.Keys(); len(keys) != 1 {
		t.Fatalf("expected exactly one registered task after supersede, got %v", keys)
	}
}

func TestRemoveCancelsAndDeregisters(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	var cancelled int32
	s.Add("x", func(ctx context.Context) {
		<-ctx.Done()
		atomic.StoreInt32(&cancelled, 1)
	})
	waitFor(t, func() bool { return len(s.Keys()) == 1 })

	s.Remove("x")
	waitFor(t, func() bool { return atomic.LoadInt32(&cancelled) == 1 })
	waitFor(t, func() bool { return len(s.Keys()) == 0 })
}

func TestRemoveUnknownKeyIsNoop(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Remove("never-added")
	waitFor(t, func() bool { return len(s.Keys()) == 0 })
}

func TestShutdownCancelsAllTasks(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())

	var aCancelled, bCancelled int32
	go s.Run(ctx)
	s.Add("a", func(ctx context.Context) {
		<-ctx.Done()
		atomic.StoreInt32(&aCancelled, 1)
	})
	s.Add("b", func(ctx context.Context) {
		<-ctx.Done()
		atomic.StoreInt32(&bCancelled, 1)
	})
	waitFor(t, func() bool { return len(s.Keys()) == 2 })

	cancel()
	waitFor(t, func() bool { return atomic.LoadInt32(&aCancelled) == 1 && atomic.LoadInt32(&bCancelled) == 1 })
}
