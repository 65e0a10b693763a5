package registry

import (
	"slices"

	"github.com/google/uuid"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Registry owns the subscription records. It is not safe for concurrent use;
// the Broker serializes every access under its lock.
type Registry struct {
	records []*Record
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Find returns the record the caller holds on slot for obs, if any.
func (r *Registry) Find(id telephony.Identity, slot telephony.SlotID, obs Observer) *Record {
	for _, rec := range r.records {
		if rec.Slot == slot && rec.Observer == obs && rec.Identity.SameCaller(id) {
			return rec
		}
	}
	return nil
}

// Add creates a record. The caller guarantees no record exists yet for
// (id, slot, obs).
func (r *Registry) Add(id telephony.Identity, sub Subscription, obs Observer) *Record {
	rec := &Record{
		ID:         uuid.NewString(),
		Identity:   id,
		BundleName: sub.BundleName,
		Slot:       sub.Slot,
		Mask:       sub.Mask,
		Observer:   obs,
	}
	r.records = append(r.records, rec)
	return rec
}

// Remove deletes rec.
func (r *Registry) Remove(rec *Record) {
	r.records = slices.DeleteFunc(r.records, func(x *Record) bool { return x == rec })
}

// RemoveObserver deletes every record delivering to obs and returns them.
func (r *Registry) RemoveObserver(obs Observer) []*Record {
	var removed []*Record
	r.records = slices.DeleteFunc(r.records, func(x *Record) bool {
		if x.Observer == obs {
			removed = append(removed, x)
			return true
		}
		return false
	})
	return removed
}

// Matching returns the records that receive an update for kind on slot, in
// registration order.
func (r *Registry) Matching(slot telephony.SlotID, kind telephony.EventKind) []*Record {
	var out []*Record
	for _, rec := range r.records {
		if rec.matches(slot, kind) {
			out = append(out, rec)
		}
	}
	return out
}

// Views copies every record.
func (r *Registry) Views() []RecordView {
	out := make([]RecordView, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.view())
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.records)
}
