// Package telephony holds the shared vocabulary of the state registry:
// event kinds and masks, SIM slots, caller identities, the typed state
// payloads that travel through the broker and the result codes returned
// across the RPC boundary. It is a leaf package with no internal imports.
package telephony

import (
	"fmt"
	"math/bits"
	"strings"
)

// EventKind is one category of telephony state. Every kind is a distinct bit
// so that kinds can be combined into a Mask.
type EventKind uint32

const (
	KindCallState EventKind = 1 << iota
	KindSignalStrength
	KindNetworkState
	KindSimState
	KindCellInfo
	KindDataConnectionState
	KindDataFlow
	KindCfuIndicator
	KindVoiceMailIndicator
	KindIccAccountChange
	KindSimActiveState

	kindEnd
)

// AllKinds lists every kind in bit order.
var AllKinds = []EventKind{
	KindCallState,
	KindSignalStrength,
	KindNetworkState,
	KindSimState,
	KindCellInfo,
	KindDataConnectionState,
	KindDataFlow,
	KindCfuIndicator,
	KindVoiceMailIndicator,
	KindIccAccountChange,
	KindSimActiveState,
}

var kindNames = map[EventKind]string{
	KindCallState:           "call_state",
	KindSignalStrength:      "signal_strength",
	KindNetworkState:        "network_state",
	KindSimState:            "sim_state",
	KindCellInfo:            "cell_info",
	KindDataConnectionState: "data_connection_state",
	KindDataFlow:            "data_flow",
	KindCfuIndicator:        "cfu_indicator",
	KindVoiceMailIndicator:  "voice_mail_indicator",
	KindIccAccountChange:    "icc_account_change",
	KindSimActiveState:      "sim_active_state",
}

// Valid reports whether k is exactly one known kind.
func (k EventKind) Valid() bool {
	return k != 0 && k < kindEnd && bits.OnesCount32(uint32(k)) == 1
}

// AllowsWildcard reports whether a subscription for k may use AllSlots.
// Only call state is slot-agnostic. New kinds must opt in here explicitly.
func (k EventKind) AllowsWildcard() bool {
	return k == KindCallState
}

// Mask returns the single-bit mask for k.
func (k EventKind) Mask() Mask { return Mask(k) }

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%#x)", uint32(k))
}

// MarshalText encodes k by name.
func (k EventKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid event kind %#x", uint32(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *EventKind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind resolves a kind by its wire name.
func ParseKind(name string) (EventKind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", name)
}

// Mask is a set of event kinds.
type Mask uint32

// MaskAll contains every known kind.
const MaskAll = Mask(kindEnd - 1)

// MaskOf builds a mask from kinds.
func MaskOf(kinds ...EventKind) Mask {
	var m Mask
	for _, k := range kinds {
		m |= Mask(k)
	}
	return m
}

// Has reports whether k is in m.
func (m Mask) Has(k EventKind) bool { return m&Mask(k) != 0 }

// Valid reports whether m is non-empty and contains only known kinds.
func (m Mask) Valid() bool { return m != 0 && m&^MaskAll == 0 }

// Kinds returns the kinds in m in bit order.
func (m Mask) Kinds() []EventKind {
	var out []EventKind
	for _, k := range AllKinds {
		if m.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (m Mask) String() string {
	if m == 0 {
		return "none"
	}
	names := make([]string, 0, bits.OnesCount32(uint32(m)))
	for _, k := range m.Kinds() {
		names = append(names, k.String())
	}
	if rest := m &^ MaskAll; rest != 0 {
		names = append(names, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(names, "|")
}
