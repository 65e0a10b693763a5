package telephony

import "slices"

// Value is a typed state payload. Each payload type belongs to exactly one
// kind. Values handed to the broker are treated as immutable; Clone is used
// wherever a copy crosses an ownership boundary.
type Value interface {
	Kind() EventKind
	Clone() Value
}

// CallStateInfo is the payload for KindCallState.
type CallStateInfo struct {
	State  CallStatus `json:"state"`
	Number string     `json:"number"`
}

func (CallStateInfo) Kind() EventKind { return KindCallState }
func (v CallStateInfo) Clone() Value  { return v }

// SignalInformation is the signal level of one radio access technology.
type SignalInformation struct {
	Network RatType `json:"signalType"`
	Level   int     `json:"signalLevel"`
	Dbm     int     `json:"dBm,omitempty"`
}

// SignalStrengthInfo is the payload for KindSignalStrength.
type SignalStrengthInfo struct {
	Signals []SignalInformation `json:"signals"`
}

func (SignalStrengthInfo) Kind() EventKind { return KindSignalStrength }
func (v SignalStrengthInfo) Clone() Value {
	v.Signals = slices.Clone(v.Signals)
	return v
}

// NetworkStateInfo is the payload for KindNetworkState.
type NetworkStateInfo struct {
	LongOperatorName  string          `json:"longOperatorName"`
	ShortOperatorName string          `json:"shortOperatorName"`
	PLMN              string          `json:"plmnNumeric"`
	Roaming           bool            `json:"isRoaming"`
	RegState          RegServiceState `json:"regState"`
	Emergency         bool            `json:"isEmergency"`
	Radio             RatType         `json:"cfgTech"`
}

func (NetworkStateInfo) Kind() EventKind { return KindNetworkState }
func (v NetworkStateInfo) Clone() Value  { return v }

// SimStateData is the payload for KindSimState.
type SimStateData struct {
	Type   CardType   `json:"type"`
	State  SimStatus  `json:"state"`
	Reason LockReason `json:"reason"`
}

func (SimStateData) Kind() EventKind { return KindSimState }
func (v SimStateData) Clone() Value  { return v }

// CellInformation describes one visible cell.
type CellInformation struct {
	Type        RatType `json:"networkType"`
	Camped      bool    `json:"isCamped"`
	Timestamp   int64   `json:"timeStamp"`
	SignalLevel int     `json:"signalLevel"`
	MCC         string  `json:"mcc"`
	MNC         string  `json:"mnc"`
	CellID      int64   `json:"cellId"`
	Area        int     `json:"lacOrTac"`
	Channel     int     `json:"arfcn"`
}

// CellInfoList is the payload for KindCellInfo.
type CellInfoList struct {
	Cells []CellInformation `json:"cells"`
}

func (CellInfoList) Kind() EventKind { return KindCellInfo }
func (v CellInfoList) Clone() Value {
	v.Cells = slices.Clone(v.Cells)
	return v
}

// DataConnectionStateInfo is the payload for KindDataConnectionState.
type DataConnectionStateInfo struct {
	State   DataConnectState `json:"state"`
	Network RatType          `json:"network"`
}

func (DataConnectionStateInfo) Kind() EventKind { return KindDataConnectionState }
func (v DataConnectionStateInfo) Clone() Value  { return v }

// DataFlowInfo is the payload for KindDataFlow.
type DataFlowInfo struct {
	Direction DataFlowType `json:"direction"`
}

func (DataFlowInfo) Kind() EventKind { return KindDataFlow }
func (v DataFlowInfo) Clone() Value  { return v }

// CfuIndicatorInfo is the payload for KindCfuIndicator.
type CfuIndicatorInfo struct {
	Active bool `json:"active"`
}

func (CfuIndicatorInfo) Kind() EventKind { return KindCfuIndicator }
func (v CfuIndicatorInfo) Clone() Value  { return v }

// VoiceMailIndicatorInfo is the payload for KindVoiceMailIndicator.
type VoiceMailIndicatorInfo struct {
	Active bool `json:"active"`
}

func (VoiceMailIndicatorInfo) Kind() EventKind { return KindVoiceMailIndicator }
func (v VoiceMailIndicatorInfo) Clone() Value  { return v }

// IccAccountInfo is the payload for KindIccAccountChange. The change itself
// is the signal; subscribers re-read account details on receipt.
type IccAccountInfo struct{}

func (IccAccountInfo) Kind() EventKind { return KindIccAccountChange }
func (v IccAccountInfo) Clone() Value  { return v }

// SimActiveStateInfo is the payload for KindSimActiveState.
type SimActiveStateInfo struct {
	Active bool `json:"active"`
}

func (SimActiveStateInfo) Kind() EventKind { return KindSimActiveState }
func (v SimActiveStateInfo) Clone() Value  { return v }

// Notification is one state change delivered to a subscriber.
type Notification struct {
	// Slot is the concrete slot the update was issued for.
	Slot SlotID
	// Subscribed is the slot of the subscription that matched. It differs
	// from Slot only for wildcard subscriptions.
	Subscribed SlotID
	Kind       EventKind
	Value      Value
}
