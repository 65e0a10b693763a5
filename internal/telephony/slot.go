package telephony

import "strconv"

// SlotID identifies a physical or virtual SIM slot.
type SlotID int32

// AllSlots is the wildcard slot. It is only meaningful for kinds whose
// AllowsWildcard reports true.
const AllSlots SlotID = -1

func (s SlotID) String() string {
	if s == AllSlots {
		return "all"
	}
	return strconv.Itoa(int(s))
}

// SlotRange describes the slots a device exposes.
type SlotRange struct {
	// Count is the number of physical slots, numbered [0, Count).
	Count int `json:"count"`
	// Virtual enables the reserved virtual SIM slot at index Count.
	Virtual bool `json:"virtual"`
}

// Contains reports whether s is a concrete slot of the device. The wildcard
// is never contained.
func (r SlotRange) Contains(s SlotID) bool {
	if s >= 0 && int(s) < r.Count {
		return true
	}
	return r.Virtual && int(s) == r.Count
}

// Slots lists every concrete slot in ascending order.
func (r SlotRange) Slots() []SlotID {
	n := r.Count
	if r.Virtual {
		n++
	}
	out := make([]SlotID, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, SlotID(i))
	}
	return out
}

// Matches reports whether a subscription on slot sub receives an update for
// kind k issued on the concrete slot s.
func Matches(sub, s SlotID, k EventKind) bool {
	if sub == s {
		return true
	}
	return sub == AllSlots && k.AllowsWildcard()
}
