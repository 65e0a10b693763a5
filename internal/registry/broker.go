// Package registry is the server side of the state registry: subscription
// records, the last-known state cache and the dispatch engine that fans
// updates out to matching observers.
//
// A single lock serializes Register, Unregister and Update passes. Delivery
// to observers happens on per-observer outboxes, so a slow or dead
// subscriber never holds that lock.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/logger"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

const defaultOutboxSize = 64

type Options struct {
	Slots      telephony.SlotRange
	Authorizer Authorizer
	// OutboxSize bounds each observer's pending deliveries. Notifications
	// past the bound are dropped.
	OutboxSize int
	Logger     *slog.Logger
}

type Broker struct {
	mu       sync.Mutex
	registry *Registry
	cache    *StateCache
	hooks    map[telephony.EventKind][]Hook
	outboxes map[Observer]*outbox
	closed   bool

	slots      telephony.SlotRange
	auth       Authorizer
	outboxSize int
	log        *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBroker(opts Options) *Broker {
	if opts.Authorizer == nil {
		opts.Authorizer = NewStaticAuthorizer(nil, nil)
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = defaultOutboxSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		registry:   NewRegistry(),
		cache:      NewStateCache(),
		hooks:      make(map[telephony.EventKind][]Hook),
		outboxes:   make(map[Observer]*outbox),
		slots:      opts.Slots,
		auth:       opts.Authorizer,
		outboxSize: opts.OutboxSize,
		log:        logger.OrDiscard(opts.Logger),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Slots returns the slot range updates are validated against.
func (b *Broker) Slots() telephony.SlotRange {
	return b.slots
}

// Use installs h for kind. Hooks run in installation order.
func (b *Broker) Use(kind telephony.EventKind, h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks[kind] = append(b.hooks[kind], h)
}

// Register merges sub into the record the caller holds on sub.Slot for obs,
// creating it if needed. Permission is checked for every requested kind before anything
// changes. When sub.NotifyNow is set, cached values for kinds newly added by
// this call are delivered immediately.
func (b *Broker) Register(id telephony.Identity, sub Subscription, obs Observer) error {
	if obs == nil || !sub.Mask.Valid() {
		return fmt.Errorf("register %s on slot %s: %w", sub.Mask, sub.Slot, telephony.ErrInvalidArgument)
	}
	for _, k := range sub.Mask.Kinds() {
		if !canRegister(b.auth, id, k) {
			b.log.Info("register denied", logger.Identity(id), logger.Kind(k))
			return fmt.Errorf("register %s: %w", k, telephony.ErrPermissionDenied)
		}
		if k.SystemOnly() && !b.auth.IsSystemApp(id) {
			return fmt.Errorf("register %s: %w", k, telephony.ErrIllegalAPIUse)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return telephony.ErrServiceUnavailable
	}

	var added telephony.Mask
	rec := b.registry.Find(id, sub.Slot, obs)
	if rec == nil {
		rec = b.registry.Add(id, sub, obs)
		b.retain(obs)
		added = sub.Mask
	} else {
		added = sub.Mask &^ rec.Mask
		rec.Mask |= sub.Mask
		if sub.BundleName != "" {
			rec.BundleName = sub.BundleName
		}
	}
	b.log.Debug("registered", logger.Identity(id), logger.Slot(sub.Slot), logger.Mask(rec.Mask), logger.ID("record", rec.ID))

	if sub.NotifyNow && b.slots.Contains(sub.Slot) {
		for _, k := range added.Kinds() {
			if v, ok := b.cache.Get(sub.Slot, k); ok {
				b.deliver(rec, sub.Slot, v)
			}
		}
	}
	return nil
}

// Unregister removes kinds from the record the caller holds on slot for obs
// and drops the record once its mask is empty. Nothing held yields
// ErrNotFound.
func (b *Broker) Unregister(id telephony.Identity, slot telephony.SlotID, mask telephony.Mask, obs Observer) error {
	if !mask.Valid() {
		return fmt.Errorf("unregister %s on slot %s: %w", mask, slot, telephony.ErrInvalidArgument)
	}
	for _, k := range mask.Kinds() {
		if k.SystemOnly() && !b.auth.IsSystemApp(id) {
			return fmt.Errorf("unregister %s: %w", k, telephony.ErrIllegalAPIUse)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return telephony.ErrServiceUnavailable
	}

	rec := b.registry.Find(id, slot, obs)
	if rec == nil || rec.Mask&mask == 0 {
		return fmt.Errorf("unregister %s on slot %s: %w", mask, slot, telephony.ErrNotFound)
	}
	rec.Mask &^= mask
	if rec.Mask == 0 {
		b.registry.Remove(rec)
		b.release(rec.Observer)
	}
	b.log.Debug("unregistered", logger.Identity(id), logger.Slot(slot), logger.Mask(mask))
	return nil
}

// Update records v as the latest state of its kind on slot and delivers it
// to every matching record. Delivery is asynchronous; individual delivery
// failures are not reported to the caller.
func (b *Broker) Update(ctx context.Context, id telephony.Identity, slot telephony.SlotID, v telephony.Value) error {
	if v == nil || !v.Kind().Valid() {
		return fmt.Errorf("update: %w", telephony.ErrInvalidArgument)
	}
	kind := v.Kind()
	if !b.slots.Contains(slot) {
		return fmt.Errorf("update %s on slot %s: %w", kind, slot, telephony.ErrSlotID)
	}
	if !b.auth.CheckPermission(id, telephony.PermSetTelephonyState) {
		b.log.Info("update denied", logger.Identity(id), logger.Kind(kind))
		return fmt.Errorf("update %s: %w", kind, telephony.ErrPermissionDenied)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return telephony.ErrServiceUnavailable
	}

	matched := b.registry.Matching(slot, kind)
	if hooks := b.hooks[kind]; len(hooks) > 0 {
		views := make([]RecordView, 0, len(matched))
		for _, rec := range matched {
			views = append(views, rec.view())
		}
		v = runHooks(hooks, kind, slot, views, v.Clone())
	}
	b.cache.Store(slot, v)

	for _, rec := range matched {
		b.deliver(rec, slot, v)
	}
	b.log.Debug("update dispatched", logger.Slot(slot), logger.Kind(kind), slog.Int("matched", len(matched)))
	return nil
}

// Cached returns the last known value of kind on slot.
func (b *Broker) Cached(slot telephony.SlotID, kind telephony.EventKind) (telephony.Value, bool) {
	return b.cache.Get(slot, kind)
}

// RemoveObserver drops every record delivering to obs. The transport calls
// it when the peer behind obs goes away.
func (b *Broker) RemoveObserver(obs Observer) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := b.registry.RemoveObserver(obs)
	for range removed {
		b.release(obs)
	}
	if len(removed) > 0 {
		b.log.Info("observer removed", slog.Int("records", len(removed)))
	}
	return len(removed)
}

// Len returns the number of records.
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.Len()
}

// Close stops every outbox and waits for in-flight deliveries to return.
// Calls after Close fail with ErrServiceUnavailable.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for obs, o := range b.outboxes {
		close(o.queue)
		delete(b.outboxes, obs)
	}
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()
}

// deliver enqueues v for rec. Called with b.mu held.
func (b *Broker) deliver(rec *Record, slot telephony.SlotID, v telephony.Value) {
	o, ok := b.outboxes[rec.Observer]
	if !ok {
		return
	}
	n := telephony.Notification{
		Slot:       slot,
		Subscribed: rec.Slot,
		Kind:       v.Kind(),
		Value:      visibleTo(b.auth, rec, v),
	}
	if !o.offer(n) {
		b.log.Warn("observer outbox full, notification dropped",
			logger.Identity(rec.Identity), logger.Slot(slot), logger.Kind(n.Kind))
	}
}

// retain and release reference-count outboxes by record. Called with b.mu
// held.
func (b *Broker) retain(obs Observer) {
	o, ok := b.outboxes[obs]
	if !ok {
		o = newOutbox(obs, b.outboxSize)
		b.outboxes[obs] = o
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			o.pump(b.ctx, b.log, func(dead Observer) { b.RemoveObserver(dead) })
		}()
	}
	o.refs++
}

func (b *Broker) release(obs Observer) {
	o, ok := b.outboxes[obs]
	if !ok {
		return
	}
	o.refs--
	if o.refs <= 0 {
		close(o.queue)
		delete(b.outboxes, obs)
	}
}
