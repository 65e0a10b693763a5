package registry

import (
	"fmt"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Dump is a point-in-time snapshot of the broker for diagnostics.
type Dump struct {
	Slots     telephony.SlotRange `json:"slots"`
	Records   []RecordView        `json:"records"`
	Cached    []CachedEntry       `json:"cached"`
	Observers int                 `json:"observers"`
}

// Dump returns a snapshot. Only system callers may read it.
func (b *Broker) Dump(id telephony.Identity) (Dump, error) {
	if !b.auth.IsSystemApp(id) {
		return Dump{}, fmt.Errorf("dump: %w", telephony.ErrIllegalAPIUse)
	}
	b.mu.Lock()
	d := Dump{
		Slots:     b.slots,
		Records:   b.registry.Views(),
		Observers: len(b.outboxes),
	}
	b.mu.Unlock()
	d.Cached = b.cache.Entries()
	return d, nil
}
