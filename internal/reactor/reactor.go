// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package reactor implements THE CORE's single-threaded event loop
// (spec.md §4.5). Rather than hand-rolling a real epoll/self-pipe
// readiness loop, cross-thread completions are modeled as typed messages
// on a channel the reactor selects over — the simplification spec.md §9
// explicitly sanctions ("Semantically identical; easier to reason about
// lifetimes"). One goroutine owns the chain index, peer objects, address
// book, and wallet ledger; every handler it invokes runs to completion
// without blocking, preserving the happens-before ordering spec.md §5
// requires.
package reactor

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/decred/slog"
)

var log = slog.Disabled

// SetLogger sets the package-level logger used by reactor.
func SetLogger(logger slog.Logger) { log = logger }

// Event is a unit of work dispatched on the reactor goroutine: a peer
// message arrival, a worker-pool completion, a timer firing, or an
// external request (submit_tx, status_snapshot). Handlers never block.
type Event func()

// timerEntry is one scheduled callback in the timer heap.
type timerEntry struct {
	at    time.Time
	fn    func()
	index int
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TimerHandle cancels a scheduled callback if it hasn't fired yet.
type TimerHandle struct {
	entry *timerEntry
}

// Reactor is the single-threaded event loop. All of its methods other
// than Post and ScheduleAfter/Cancel are meant to be called only from
// within a dispatched Event, i.e. from the reactor's own goroutine.
type Reactor struct {
	events  chan Event
	timers  timerHeap
	timerMu sync.Mutex
	wake    chan struct{}

	shutdownOnce sync.Once
	done         chan struct{}
}

// New returns a Reactor with a bounded event queue. queueSize bounds how
// many pending events (peer messages, pool completions) may be queued
// before Post blocks, providing natural backpressure.
func New(queueSize int) *Reactor {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Reactor{
		events: make(chan Event, queueSize),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Post queues ev for execution on the reactor goroutine. Safe to call
// from any goroutine (peer readers, the worker pool's result drain).
func (r *Reactor) Post(ev Event) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// ScheduleAfter schedules fn to run on the reactor goroutine after d
// elapses, implementing the timer heap spec.md §4.5 calls for (pings,
// broadcast re-try, header-sync rotation all ride this).
func (r *Reactor) ScheduleAfter(d time.Duration, fn func()) *TimerHandle {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	e := &timerEntry{at: time.Now().Add(d), fn: fn}
	heap.Push(&r.timers, e)
	r.pokeWake()
	return &TimerHandle{entry: e}
}

// Cancel removes a previously scheduled timer if it hasn't fired.
func (r *Reactor) Cancel(h *TimerHandle) {
	if h == nil || h.entry == nil {
		return
	}
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if h.entry.index >= 0 && h.entry.index < len(r.timers) && r.timers[h.entry.index] == h.entry {
		heap.Remove(&r.timers, h.entry.index)
	}
	h.entry = nil
}

func (r *Reactor) pokeWake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// nextTimerWait returns the duration until the soonest timer fires, and
// whether any timer is pending.
func (r *Reactor) nextTimerWait() (time.Duration, bool) {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	if len(r.timers) == 0 {
		return 0, false
	}
	d := time.Until(r.timers[0].at)
	if d < 0 {
		d = 0
	}
	return d, true
}

// popDueTimers removes and returns every timer whose deadline has
// passed.
func (r *Reactor) popDueTimers() []*timerEntry {
	r.timerMu.Lock()
	defer r.timerMu.Unlock()
	var due []*timerEntry
	now := time.Now()
	for len(r.timers) > 0 && !r.timers[0].at.After(now) {
		e := heap.Pop(&r.timers).(*timerEntry)
		due = append(due, e)
	}
	return due
}

// Run drains events and timers until ctx is cancelled or Shutdown is
// called. It is the reactor goroutine's body; call it from exactly one
// goroutine.
func (r *Reactor) Run(ctx context.Context) {
	for {
		wait, havePending := r.nextTimerWait()
		var t *time.Timer
		var timerC <-chan time.Time
		if havePending {
			t = time.NewTimer(wait)
			timerC = t.C
		}

		select {
		case <-ctx.Done():
			stopTimer(t)
			return
		case <-r.done:
			stopTimer(t)
			return
		case ev := <-r.events:
			stopTimer(t)
			ev()
		case <-r.wake:
			// A timer was scheduled/cancelled; loop to recompute wait.
			stopTimer(t)
		case <-timerC:
			for _, e := range r.popDueTimers() {
				e.fn()
			}
		}
	}
}

// Shutdown stops Run's loop after the current event finishes.
func (r *Reactor) Shutdown() {
	r.shutdownOnce.Do(func() { close(r.done) })
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
