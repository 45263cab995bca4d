package core

import (
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestContinuationRegistry_LookupUnknownIsAbsent(t *testing.T) {
	registry := NewContinuationRegistry()
	if _, ok := registry.Lookup(42); ok {
		t.Fatalf("expected never-created id to be absent")
	}
	for _, raw := range []string{"", "abc", "-1", "0", "1.5", "99999999999999999999"} {
		if _, ok := registry.LookupString(raw); ok {
			t.Fatalf("expected malformed id %q to be absent", raw)
		}
	}
}

func TestContinuationRegistry_DisposeIsIdempotent(t *testing.T) {
	registry := NewContinuationRegistry()
	registry.Dispose(nil)
	registry.Dispose(newContinuation(7, time.Now(), nil))

	continuation := registry.Create(time.Second)
	found, ok := registry.LookupString(strconv.FormatInt(continuation.ID(), 10))
	if !ok || found != continuation {
		t.Fatalf("expected live continuation to be found by header value")
	}

	registry.Dispose(continuation)
	registry.Dispose(continuation)
	if _, ok := registry.Lookup(continuation.ID()); ok {
		t.Fatalf("expected lookup after dispose to report absence")
	}
	if registry.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", registry.Len())
	}
}

func TestContinuationRegistry_DisposeKeepsReusedID(t *testing.T) {
	registry := NewContinuationRegistry()
	stale := newContinuation(1, time.Now(), registry)
	live := registry.Create(time.Second)
	if live.ID() != 1 {
		t.Fatalf("expected first allocated id 1, got %d", live.ID())
	}

	registry.Dispose(stale)
	if _, ok := registry.Lookup(1); !ok {
		t.Fatalf("disposing a different continuation with the same id must not evict the live one")
	}
}

func TestContinuationRegistry_AllocationSkipsLiveIDsAfterWrap(t *testing.T) {
	registry := NewContinuationRegistry()
	first := registry.Create(time.Second)
	second := registry.Create(time.Second)

	registry.mu.Lock()
	registry.next = 0
	registry.mu.Unlock()

	third := registry.Create(time.Second)
	if third.ID() == first.ID() || third.ID() == second.ID() {
		t.Fatalf("expected wrapped allocator to skip live ids, got %d", third.ID())
	}
}

func TestContinuationRegistry_ConcurrentCreateAndReply(t *testing.T) {
	registry := NewContinuationRegistry()
	const total = 10000

	continuations := make([]*Continuation, total)
	wakes := make([]*wakeSignal, total)
	var created sync.WaitGroup
	for i := 0; i < total; i++ {
		created.Add(1)
		go func(idx int) {
			defer created.Done()
			wakes[idx] = newWakeSignal()
			continuations[idx] = registry.Create(10 * time.Second)
			continuations[idx].Dispatch(wakes[idx])
		}(i)
	}
	created.Wait()

	seen := make(map[int64]struct{}, total)
	for _, continuation := range continuations {
		if _, dup := seen[continuation.ID()]; dup {
			t.Fatalf("duplicate live id %d", continuation.ID())
		}
		seen[continuation.ID()] = struct{}{}
	}
	if registry.Len() != total {
		t.Fatalf("expected %d live continuations, got %d", total, registry.Len())
	}

	var replied sync.WaitGroup
	for i := 0; i < total; i++ {
		replied.Add(1)
		go func(idx int) {
			defer replied.Done()
			id := strconv.FormatInt(continuations[idx].ID(), 10)
			found, ok := registry.LookupString(id)
			if !ok {
				t.Errorf("continuation %s not found", id)
				return
			}
			if !found.SetReply(Message{Payload: fmt.Sprintf("payload-%s", id)}) {
				t.Errorf("reply for %s rejected", id)
			}
		}(i)
	}
	replied.Wait()

	for i, continuation := range continuations {
		wakes[i].wait(t, time.Second)
		result := continuation.Dispatch(wakes[i])
		if result.Outcome != OutcomeReplied {
			t.Fatalf("continuation %d: expected replied, got %s", continuation.ID(), result.Outcome)
		}
		want := fmt.Sprintf("payload-%d", continuation.ID())
		if result.Reply.Payload != want {
			t.Fatalf("continuation %d: expected %q, got %v", continuation.ID(), want, result.Reply.Payload)
		}
	}
	if registry.Len() != 0 {
		t.Fatalf("expected registry drained, got %d", registry.Len())
	}
}

func TestContinuationRegistry_SnapshotOrderedByID(t *testing.T) {
	registry := NewContinuationRegistry()
	first := registry.Create(time.Second)
	second := registry.Create(time.Second)
	third := registry.Create(time.Second)
	registry.Dispose(second)

	snapshot := registry.Snapshot()
	if len(snapshot) != 2 || snapshot[0] != first || snapshot[1] != third {
		t.Fatalf("expected ordered live continuations, got %d entries", len(snapshot))
	}
}
