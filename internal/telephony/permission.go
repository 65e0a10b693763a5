package telephony

// Permission names an OS permission checked by the registry.
type Permission string

const (
	PermGetNetworkInfo        Permission = "ohos.permission.GET_NETWORK_INFO"
	PermLocation              Permission = "ohos.permission.LOCATION"
	PermApproximatelyLocation Permission = "ohos.permission.APPROXIMATELY_LOCATION"
	PermGetTelephonyState     Permission = "ohos.permission.GET_TELEPHONY_STATE"
	PermSetTelephonyState     Permission = "ohos.permission.SET_TELEPHONY_STATE"
	PermReadCallLog           Permission = "ohos.permission.READ_CALL_LOG"
)

// KnownPermissions lists every permission the registry consults.
var KnownPermissions = []Permission{
	PermGetNetworkInfo,
	PermLocation,
	PermApproximatelyLocation,
	PermGetTelephonyState,
	PermSetTelephonyState,
	PermReadCallLog,
}

// Known reports whether p is one of KnownPermissions.
func (p Permission) Known() bool {
	for _, k := range KnownPermissions {
		if p == k {
			return true
		}
	}
	return false
}

var registerPermissions = map[EventKind][]Permission{
	KindSignalStrength:      {PermGetNetworkInfo},
	KindNetworkState:        {PermGetNetworkInfo},
	KindCellInfo:            {PermLocation, PermApproximatelyLocation},
	KindDataConnectionState: {PermGetNetworkInfo},
	KindDataFlow:            {PermGetNetworkInfo},
	KindCfuIndicator:        {PermGetTelephonyState},
	KindVoiceMailIndicator:  {PermGetTelephonyState},
}

// RegisterPermissions returns the permissions a caller must hold to
// subscribe to k. Kinds without an entry are open to every caller.
func (k EventKind) RegisterPermissions() []Permission {
	return registerPermissions[k]
}

// SystemOnly reports whether subscribing to or unsubscribing from k is
// restricted to system callers.
func (k EventKind) SystemOnly() bool {
	switch k {
	case KindCellInfo, KindCfuIndicator, KindVoiceMailIndicator:
		return true
	}
	return false
}
