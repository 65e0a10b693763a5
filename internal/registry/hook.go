package registry

import (
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Hook intercepts an update before it is cached and forwarded. It receives
// the records the update will be delivered to and returns the value that is
// actually stored. Returning the input unchanged is a no-op. Hooks run under
// the broker lock and must not call back into the Broker.
type Hook func(kind telephony.EventKind, slot telephony.SlotID, records []RecordView, v telephony.Value) telephony.Value

// runHooks applies hooks in installation order. A hook returning nil or a
// value of another kind is ignored.
func runHooks(hooks []Hook, kind telephony.EventKind, slot telephony.SlotID, records []RecordView, v telephony.Value) telephony.Value {
	for _, h := range hooks {
		out := h(kind, slot, records, v)
		if out == nil || out.Kind() != kind {
			continue
		}
		v = out
	}
	return v
}
