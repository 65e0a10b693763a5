package registry

import (
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// visibleTo returns the copy of v a given record may see. The cached value
// is never modified.
func visibleTo(auth Authorizer, rec *Record, v telephony.Value) telephony.Value {
	out := v.Clone()
	if cs, ok := out.(telephony.CallStateInfo); ok && cs.Number != "" {
		if !auth.CheckPermission(rec.Identity, telephony.PermReadCallLog) {
			cs.Number = ""
			return cs
		}
	}
	return out
}
