package registry

import (
	"context"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Observer is the remote callback a subscriber registers. Implementations
// must be comparable (pointer receivers); the broker keys delivery queues
// on observer identity.
type Observer interface {
	Notify(ctx context.Context, n telephony.Notification) error
}

// Subscription is what a caller asks for when registering.
type Subscription struct {
	Slot       telephony.SlotID
	Mask       telephony.Mask
	BundleName string
	NotifyNow  bool
}

// Record binds one caller on one slot to a set of kinds and an observer.
// There is at most one Record per (caller, slot, observer); observers opened
// by the same process never share a record.
type Record struct {
	ID         string
	Identity   telephony.Identity
	BundleName string
	Slot       telephony.SlotID
	Mask       telephony.Mask
	Observer   Observer
}

// RecordView is a read-only copy of a Record handed to extension hooks and
// dumps.
type RecordView struct {
	ID         string             `json:"id"`
	Identity   telephony.Identity `json:"identity"`
	BundleName string             `json:"bundleName,omitempty"`
	Slot       telephony.SlotID   `json:"slot"`
	Mask       telephony.Mask     `json:"mask"`
}

func (r *Record) view() RecordView {
	return RecordView{
		ID:         r.ID,
		Identity:   r.Identity,
		BundleName: r.BundleName,
		Slot:       r.Slot,
		Mask:       r.Mask,
	}
}

func (r *Record) matches(slot telephony.SlotID, kind telephony.EventKind) bool {
	return r.Mask.Has(kind) && telephony.Matches(r.Slot, slot, kind)
}
