// Package observer is the client side of the state registry. A Multiplexer
// shares one broker registration per (slot, kind) among any number of local
// listeners and hands each notification to every matching listener on that
// listener's own Loop.
package observer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/logger"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Broker is the registration surface of the registry service.
type Broker interface {
	RegisterStateChange(ctx context.Context, slot telephony.SlotID, mask telephony.Mask, notifyNow bool) error
	UnregisterStateChange(ctx context.Context, slot telephony.SlotID, mask telephony.Mask) error
}

type key struct {
	slot telephony.SlotID
	kind telephony.EventKind
}

type Options struct {
	// NotifyNow asks the broker for the cached value whenever a new broker
	// registration is made.
	NotifyNow bool
	Logger    *slog.Logger
}

type Multiplexer struct {
	broker    Broker
	notifyNow bool
	log       *slog.Logger

	// regMu serializes every change to broker registrations so the
	// registered table and the broker never disagree for long.
	regMu sync.Mutex

	mu         sync.Mutex
	listeners  []*Listener
	registered map[key]bool
	nextID     uint64
	// closing counts Close calls in progress. While it is non-zero a fired
	// listener leaves its registration for Close to drop.
	closing int

	wg sync.WaitGroup
}

func NewMultiplexer(b Broker, opts Options) *Multiplexer {
	return &Multiplexer{
		broker:     b,
		notifyNow:  opts.NotifyNow,
		log:        logger.OrDiscard(opts.Logger),
		registered: make(map[key]bool),
	}
}

// AddListener subscribes cb to kind on slot. cb always runs on loop. The
// first listener for a (slot, kind) pair registers with the broker; later
// ones share that registration. If the registration fails the listener is
// discarded and the error returned.
func (m *Multiplexer) AddListener(ctx context.Context, slot telephony.SlotID, kind telephony.EventKind, loop *Loop, cb Callback, fireOnce bool) (*Listener, error) {
	if !kind.Valid() || loop == nil || cb == nil {
		return nil, fmt.Errorf("add listener: %w", telephony.ErrInvalidArgument)
	}
	if slot < telephony.AllSlots || (slot == telephony.AllSlots && !kind.AllowsWildcard()) {
		return nil, fmt.Errorf("add listener for %s on slot %s: %w", kind, slot, telephony.ErrSlotID)
	}

	m.regMu.Lock()
	defer m.regMu.Unlock()

	k := key{slot, kind}
	m.mu.Lock()
	m.nextID++
	l := newListener(m.nextID, slot, kind, loop, cb, fireOnce)
	m.listeners = append(m.listeners, l)
	need := !m.registered[k]
	m.mu.Unlock()

	if need {
		if err := m.broker.RegisterStateChange(ctx, slot, kind.Mask(), m.notifyNow); err != nil {
			m.mu.Lock()
			m.listeners = slices.DeleteFunc(m.listeners, func(x *Listener) bool { return x == l })
			m.mu.Unlock()
			l.markRemoved()
			return nil, err
		}
		m.mu.Lock()
		m.registered[k] = true
		m.mu.Unlock()
		m.log.Debug("broker registration added", logger.Slot(slot), logger.Kind(kind))
	}
	return l, nil
}

// RemoveListener removes target, or every listener for (slot, kind) when
// target is nil. The broker registration is dropped with the last listener.
// Callbacks are released once their in-flight dispatches finish; use
// Listener.Done to wait for that.
func (m *Multiplexer) RemoveListener(ctx context.Context, slot telephony.SlotID, kind telephony.EventKind, target *Listener) error {
	m.regMu.Lock()
	defer m.regMu.Unlock()

	k := key{slot, kind}
	removed, unregister := m.detach(k, func(l *Listener) bool { return target == nil || l == target })
	for _, l := range removed {
		l.markRemoved()
	}
	if !unregister {
		return nil
	}
	return m.unregister(ctx, k)
}

// detach removes the listeners of k accepted by match and reports whether
// the broker registration for k is now unused.
func (m *Multiplexer) detach(k key, match func(*Listener) bool) ([]*Listener, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []*Listener
	m.listeners = slices.DeleteFunc(m.listeners, func(l *Listener) bool {
		if l.Slot == k.slot && l.Kind == k.kind && match(l) {
			removed = append(removed, l)
			return true
		}
		return false
	})
	if !m.registered[k] || m.hasListenerLocked(k) {
		return removed, false
	}
	delete(m.registered, k)
	return removed, true
}

func (m *Multiplexer) hasListenerLocked(k key) bool {
	for _, l := range m.listeners {
		if l.Slot == k.slot && l.Kind == k.kind {
			return true
		}
	}
	return false
}

// unregister drops the broker registration for k. A registration the broker
// no longer knows about counts as removed.
func (m *Multiplexer) unregister(ctx context.Context, k key) error {
	err := m.broker.UnregisterStateChange(ctx, k.slot, k.kind.Mask())
	if errors.Is(err, telephony.ErrNotFound) {
		err = nil
	}
	if err != nil {
		m.log.Warn("broker unregister failed", logger.Slot(k.slot), logger.Kind(k.kind), logger.Error(err))
		return err
	}
	m.log.Debug("broker registration removed", logger.Slot(k.slot), logger.Kind(k.kind))
	return nil
}

// Notify fans n out to every matching listener. It is the transport's
// notification handler and never blocks on a callback.
func (m *Multiplexer) Notify(n telephony.Notification) {
	if n.Value == nil {
		return
	}
	m.mu.Lock()
	var targets []*Listener
	for _, l := range m.listeners {
		if l.Slot == n.Subscribed && l.Kind == n.Kind && l.acquire() {
			targets = append(targets, l)
		}
	}
	m.mu.Unlock()

	for _, l := range targets {
		note := n
		note.Value = n.Value.Clone()
		if !l.loop.Post(func() { m.dispatch(l, note) }, l.finish) {
			m.log.Debug("listener loop closed, notification dropped", logger.Slot(n.Slot), logger.Kind(n.Kind))
			l.finish()
		}
	}
}

// dispatch runs on the listener's loop.
func (m *Multiplexer) dispatch(l *Listener, n telephony.Notification) {
	defer l.finish()
	if l.invoke(n) && l.FireOnce {
		m.removeFired(l)
	}
}

// removeFired takes a fire-once listener out of the list right away. The
// broker call, if one is needed, happens off the loop.
func (m *Multiplexer) removeFired(l *Listener) {
	k := key{l.Slot, l.Kind}
	m.mu.Lock()
	n := len(m.listeners)
	m.listeners = slices.DeleteFunc(m.listeners, func(x *Listener) bool { return x == l })
	if len(m.listeners) == n {
		m.mu.Unlock()
		return
	}
	unregister := m.closing == 0 && m.registered[k] && !m.hasListenerLocked(k)
	if unregister {
		delete(m.registered, k)
		m.wg.Add(1)
	}
	m.mu.Unlock()

	l.markRemoved()
	if !unregister {
		return
	}
	go func() {
		defer m.wg.Done()
		m.regMu.Lock()
		defer m.regMu.Unlock()
		m.mu.Lock()
		readded := m.hasListenerLocked(k)
		m.mu.Unlock()
		if readded {
			return
		}
		m.unregister(context.Background(), k)
	}()
}

// Count returns the number of listeners for (slot, kind).
func (m *Multiplexer) Count(slot telephony.SlotID, kind telephony.EventKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.listeners {
		if l.Slot == slot && l.Kind == kind {
			n++
		}
	}
	return n
}

// Registered reports whether a broker registration is held for (slot, kind).
func (m *Multiplexer) Registered(slot telephony.SlotID, kind telephony.EventKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registered[key{slot, kind}]
}

// Close removes every listener, drops all broker registrations and waits
// for background unregistrations to finish.
func (m *Multiplexer) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closing++
	keys := make(map[key]struct{})
	for _, l := range m.listeners {
		keys[key{l.Slot, l.Kind}] = struct{}{}
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.closing--
		m.mu.Unlock()
	}()

	var errs []error
	for k := range keys {
		if err := m.RemoveListener(ctx, k.slot, k.kind, nil); err != nil {
			errs = append(errs, err)
		}
	}
	m.wg.Wait()
	if err := m.dropUnused(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// dropUnused unregisters every broker registration no listener needs.
func (m *Multiplexer) dropUnused(ctx context.Context) error {
	m.regMu.Lock()
	defer m.regMu.Unlock()

	m.mu.Lock()
	var unused []key
	for k := range m.registered {
		if !m.hasListenerLocked(k) {
			unused = append(unused, k)
			delete(m.registered, k)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, k := range unused {
		if err := m.unregister(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
