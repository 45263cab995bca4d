package core

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ContinuationRegistry maps correlation ids to live continuations. Entries are
// only removed explicitly, by Dispose, once a terminal outcome is consumed.
type ContinuationRegistry struct {
	mu            sync.RWMutex
	continuations map[int64]*Continuation
	next          int64
	now           func() time.Time
}

func NewContinuationRegistry() *ContinuationRegistry {
	return &ContinuationRegistry{
		continuations: make(map[int64]*Continuation),
		now:           time.Now,
	}
}

func (r *ContinuationRegistry) Create(timeout time.Duration) *Continuation {
	deadline := r.now().Add(timeout)

	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.allocateLocked()
	continuation := newContinuation(id, deadline, r)
	r.continuations[id] = continuation
	return continuation
}

func (r *ContinuationRegistry) Lookup(id int64) (*Continuation, bool) {
	if id <= 0 {
		return nil, false
	}
	r.mu.RLock()
	continuation, ok := r.continuations[id]
	r.mu.RUnlock()
	return continuation, ok
}

// LookupString resolves an id carried as a header value. Malformed values
// are reported as absent.
func (r *ContinuationRegistry) LookupString(raw string) (*Continuation, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, false
	}
	return r.Lookup(id)
}

func (r *ContinuationRegistry) Dispose(continuation *Continuation) {
	if r == nil || continuation == nil {
		return
	}
	r.mu.Lock()
	if current, ok := r.continuations[continuation.id]; ok && current == continuation {
		delete(r.continuations, continuation.id)
	}
	r.mu.Unlock()
}

func (r *ContinuationRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.continuations)
}

// Snapshot returns the live continuations ordered by id.
func (r *ContinuationRegistry) Snapshot() []*Continuation {
	r.mu.RLock()
	out := make([]*Continuation, 0, len(r.continuations))
	for _, continuation := range r.continuations {
		out = append(out, continuation)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *ContinuationRegistry) allocateLocked() int64 {
	for {
		if r.next == math.MaxInt64 {
			r.next = 0
		}
		r.next++
		if _, live := r.continuations[r.next]; !live {
			return r.next
		}
	}
}
