package core

import (
	"sync"
	"sync/atomic"
	"time"
)

type State int32

const (
	StatePending State = iota
	StateReplied
	StateExpired
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReplied:
		return "replied"
	case StateExpired:
		return "expired"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

type Outcome int

const (
	OutcomeParked Outcome = iota
	OutcomeReplied
	OutcomeExpired
	OutcomeDisposed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeParked:
		return "parked"
	case OutcomeReplied:
		return "replied"
	case OutcomeExpired:
		return "expired"
	case OutcomeDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

type DispatchResult struct {
	Outcome Outcome
	Reply   *Message
}

// Continuation parks one inbound connection until a reply arrives or its
// deadline elapses. Every transition happens under mu; the first of
// SetReply or the deadline timer to take the lock while pending decides the
// terminal state.
type Continuation struct {
	id       int64
	deadline time.Time
	owner    *ContinuationRegistry

	mu       sync.Mutex
	state    State
	terminal State
	reply    *Message
	handle   ResumeHandle
	timer    *time.Timer

	expired atomic.Bool
}

func newContinuation(id int64, deadline time.Time, owner *ContinuationRegistry) *Continuation {
	return &Continuation{
		id:       id,
		deadline: deadline,
		owner:    owner,
		state:    StatePending,
		terminal: StatePending,
	}
}

func (c *Continuation) ID() int64 {
	return c.id
}

func (c *Continuation) Deadline() time.Time {
	return c.deadline
}

func (c *Continuation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Outcome reports the terminal state reached, which survives disposal.
// StatePending means neither a reply nor the deadline has won yet.
func (c *Continuation) Outcome() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal
}

func (c *Continuation) IsExpired() bool {
	return c.expired.Load()
}

func (c *Continuation) Dispatch(handle ResumeHandle) DispatchResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateDisposed:
		return DispatchResult{Outcome: OutcomeDisposed}
	case StateReplied:
		reply := c.reply
		c.disposeLocked()
		return DispatchResult{Outcome: OutcomeReplied, Reply: reply}
	case StateExpired:
		c.disposeLocked()
		return DispatchResult{Outcome: OutcomeExpired}
	}

	if c.handle != nil {
		return DispatchResult{Outcome: OutcomeParked}
	}

	remaining := time.Until(c.deadline)
	if remaining <= 0 {
		c.markExpiredLocked()
		c.disposeLocked()
		return DispatchResult{Outcome: OutcomeExpired}
	}
	if handle == nil {
		handle = ResumeFunc(nil)
	}
	c.handle = handle
	c.timer = time.AfterFunc(remaining, c.expire)
	return DispatchResult{Outcome: OutcomeParked}
}

// SetReply stores the reply and resumes the parked connection. It reports
// false when the continuation already replied, expired or was disposed.
func (c *Continuation) SetReply(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePending || c.reply != nil {
		return false
	}
	reply := msg
	c.reply = &reply
	c.state = StateReplied
	c.terminal = StateReplied
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.handle != nil {
		c.handle.Resume()
	}
	return true
}

// Discard drops a continuation whose request never reached the pipeline.
func (c *Continuation) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisposed {
		return
	}
	c.disposeLocked()
}

func (c *Continuation) expire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePending {
		return
	}
	c.markExpiredLocked()
	if c.handle != nil {
		c.handle.Resume()
	}
}

func (c *Continuation) markExpiredLocked() {
	c.state = StateExpired
	c.terminal = StateExpired
	c.expired.Store(true)
}

func (c *Continuation) disposeLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = StateDisposed
	c.handle = nil
	if c.owner != nil {
		c.owner.Dispose(c)
	}
}
