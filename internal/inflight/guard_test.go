package inflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDoDeduplicatesConcurrentCalls(t *testing.T) {
	g := New()
	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{})

	fn := func() (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "done", nil
	}

	var wg sync.WaitGroup
	results := make([]any, 2)
	shared := make([]bool, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], shared[0], _ = g.Do(context.Background(), "remove:g1:u2", fn)
	}()
	<-started
	if !g.Busy("remove:g1:u2") {
		t.Fatal("key should be busy while fn runs")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], shared[1], _ = g.Do(context.Background(), "remove:g1:u2", fn)
	}()
	// Give the second caller time to join the outstanding call.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("fn ran %d times, want 1", calls.Load())
	}
	if results[0] != "done" || results[1] != "done" {
		t.Errorf("results = %v", results)
	}
	if shared[0] {
		t.Error("the caller that ran fn must not report a shared result")
	}
	if !shared[1] {
		t.Error("second caller should report a shared result")
	}
	if g.Busy("remove:g1:u2") {
		t.Error("key still busy after completion")
	}
}

func TestDoDistinctKeysRunIndependently(t *testing.T) {
	g := New()
	var calls atomic.Int32
	fn := func() (any, error) { calls.Add(1); return nil, nil }
	g.Do(context.Background(), Key("promote", "g1", "u1"), fn)
	g.Do(context.Background(), Key("promote", "g1", "u2"), fn)
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestDoSoleCallerIsNotShared(t *testing.T) {
	g := New()
	for i := range 3 {
		_, shared, err := g.Do(context.Background(), "k", func() (any, error) { return i, nil })
		if err != nil || shared {
			t.Errorf("call %d: shared = %v, err = %v", i, shared, err)
		}
	}
}

func TestDoPropagatesError(t *testing.T) {
	g := New()
	want := errors.New("boom")
	_, _, err := g.Do(context.Background(), "k", func() (any, error) { return nil, want })
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
}

func TestDoContextBoundsWait(t *testing.T) {
	g := New()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err := g.Do(ctx, "slow", func() (any, error) { <-release; return nil, nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestKey(t *testing.T) {
	if got := Key("remove", "g1", "u2"); got != "remove:g1:u2" {
		t.Errorf("Key = %q", got)
	}
}

func TestMemberKey(t *testing.T) {
	if MemberKey(OpRemoveMember, "g1", "u2") == MemberKey(OpPromoteAdmin, "g1", "u2") {
		t.Error("operations on the same member must not share a key")
	}
}
