package observer

import (
	"context"
	"sync"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Callback receives one notification on the listener's loop.
type Callback func(telephony.Notification)

// Listener is one local subscription to a (slot, kind) pair.
//
// pending counts dispatches posted to the loop but not yet finished. The
// callback is released only after the listener is removed and pending has
// dropped to zero, so a dispatch already in flight never reaches a released
// callback.
type Listener struct {
	ID       uint64
	Slot     telephony.SlotID
	Kind     telephony.EventKind
	FireOnce bool

	loop *Loop

	mu       sync.Mutex
	cb       Callback
	pending  int
	removed  bool
	fired    bool
	released chan struct{}
}

func newListener(id uint64, slot telephony.SlotID, kind telephony.EventKind, loop *Loop, cb Callback, fireOnce bool) *Listener {
	return &Listener{
		ID:       id,
		Slot:     slot,
		Kind:     kind,
		FireOnce: fireOnce,
		loop:     loop,
		cb:       cb,
		released: make(chan struct{}),
	}
}

// Done is closed once the listener has been removed and its callback
// released.
func (l *Listener) Done() <-chan struct{} {
	return l.released
}

// Wait blocks until Done is closed or ctx ends. It must not be called from
// the listener's own loop while a dispatch to it is pending.
func (l *Listener) Wait(ctx context.Context) error {
	select {
	case <-l.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of dispatches in flight.
func (l *Listener) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

func (l *Listener) acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed {
		return false
	}
	l.pending++
	return true
}

func (l *Listener) finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending--
	if l.pending == 0 && l.removed {
		l.release()
	}
}

// invoke runs the callback unless the listener was removed or, for a
// fire-once listener, already fired. It reports whether the callback ran.
func (l *Listener) invoke(n telephony.Notification) bool {
	l.mu.Lock()
	if l.removed || (l.FireOnce && l.fired) {
		l.mu.Unlock()
		return false
	}
	l.fired = true
	cb := l.cb
	l.mu.Unlock()
	cb(n)
	return true
}

func (l *Listener) markRemoved() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.removed {
		return
	}
	l.removed = true
	if l.pending == 0 {
		l.release()
	}
}

// release drops the callback. Called with l.mu held.
func (l *Listener) release() {
	l.cb = nil
	close(l.released)
}
