package registry

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/logger"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// outbox is the per-observer delivery queue. The broker enqueues without
// blocking while holding its lock; a single pump goroutine drains the queue
// in order so each observer sees updates in the order they were issued.
type outbox struct {
	obs   Observer
	queue chan telephony.Notification
	// refs counts the records delivering through this outbox. Guarded by
	// the broker lock.
	refs int
	dead atomic.Bool
}

func newOutbox(obs Observer, size int) *outbox {
	return &outbox{
		obs:   obs,
		queue: make(chan telephony.Notification, size),
	}
}

// offer enqueues n and reports false when the queue is full. Must be called
// with the broker lock held so it never races close.
func (o *outbox) offer(n telephony.Notification) bool {
	if o.dead.Load() {
		return false
	}
	select {
	case o.queue <- n:
		return true
	default:
		return false
	}
}

// pump delivers queued notifications until the queue is closed. A failed
// delivery marks the observer dead and hands it to onDead; the remaining
// queue is discarded.
func (o *outbox) pump(ctx context.Context, log *slog.Logger, onDead func(Observer)) {
	for n := range o.queue {
		if o.dead.Load() {
			continue
		}
		if err := o.obs.Notify(ctx, n); err != nil {
			o.dead.Store(true)
			log.Warn("observer delivery failed, dropping its registrations",
				logger.Slot(n.Slot), logger.Kind(n.Kind), logger.Error(err))
			onDead(o.obs)
		}
	}
}
