package telephony

// CallStatus is the detailed status of a call as reported by the call stack.
type CallStatus int32

const (
	CallStatusActive CallStatus = iota
	CallStatusHolding
	CallStatusDialing
	CallStatusAlerting
	CallStatusIncoming
	CallStatusWaiting
	CallStatusDisconnected
	CallStatusDisconnecting
	CallStatusIdle
)

// CallState is the coarse call state exposed to applications.
type CallState int32

const (
	CallStateUnknown CallState = iota - 1
	CallStateIdle
	CallStateRinging
	CallStateOffhook
)

// State folds a detailed status into the coarse application state.
func (s CallStatus) State() CallState {
	switch s {
	case CallStatusActive, CallStatusHolding, CallStatusDialing, CallStatusAlerting, CallStatusDisconnecting:
		return CallStateOffhook
	case CallStatusWaiting, CallStatusIncoming:
		return CallStateRinging
	case CallStatusDisconnected, CallStatusIdle:
		return CallStateIdle
	default:
		return CallStateUnknown
	}
}

func (s CallState) String() string {
	switch s {
	case CallStateIdle:
		return "idle"
	case CallStateRinging:
		return "ringing"
	case CallStateOffhook:
		return "offhook"
	default:
		return "unknown"
	}
}

// RegServiceState is the modem's network registration state.
type RegServiceState int32

const (
	RegStateUnknown RegServiceState = iota
	RegStateInService
	RegStateNoService
	RegStateEmergencyOnly
	RegStateSearch
	RegStatePowerOff
)

// RegStatus is the registration status exposed to applications.
type RegStatus int32

const (
	RegistrationNoService RegStatus = iota
	RegistrationInService
	RegistrationEmergencyOnly
	RegistrationPowerOff
)

// Status folds a modem registration state into the application status.
func (s RegServiceState) Status() RegStatus {
	switch s {
	case RegStateNoService, RegStateSearch:
		return RegistrationNoService
	case RegStateInService:
		return RegistrationInService
	case RegStateEmergencyOnly:
		return RegistrationEmergencyOnly
	default:
		return RegistrationPowerOff
	}
}

func (s RegStatus) String() string {
	switch s {
	case RegistrationNoService:
		return "no service"
	case RegistrationInService:
		return "in service"
	case RegistrationEmergencyOnly:
		return "emergency only"
	default:
		return "power off"
	}
}

// RatType is a radio access technology.
type RatType int32

const (
	RatUnknown RatType = iota
	RatGSM
	RatCDMA
	RatWCDMA
	RatTDSCDMA
	RatLTE
	RatNR
)

func (r RatType) String() string {
	switch r {
	case RatGSM:
		return "GSM"
	case RatCDMA:
		return "CDMA"
	case RatWCDMA:
		return "WCDMA"
	case RatTDSCDMA:
		return "TD-SCDMA"
	case RatLTE:
		return "LTE"
	case RatNR:
		return "NR"
	default:
		return "unknown"
	}
}

// CardType is the kind of SIM card in a slot.
type CardType int32

const (
	CardUnknown CardType = iota - 1
	CardSingleModeSIM
	CardSingleModeUSIM
	CardDualModeCG
)

// SimStatus is the SIM card state.
type SimStatus int32

const (
	SimUnknown SimStatus = iota
	SimNotPresent
	SimLocked
	SimNotReady
	SimReady
	SimLoaded
)

func (s SimStatus) String() string {
	switch s {
	case SimNotPresent:
		return "not present"
	case SimLocked:
		return "locked"
	case SimNotReady:
		return "not ready"
	case SimReady:
		return "ready"
	case SimLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// LockReason explains a SimLocked state.
type LockReason int32

const (
	LockNone LockReason = iota
	LockPIN
	LockPUK
	LockPN
	LockPU
	LockSP
	LockC
)

// DataConnectState is the cellular data connection state.
type DataConnectState int32

const (
	DataStateUnknown DataConnectState = iota - 1
	DataStateDisconnected
	DataStateConnecting
	DataStateConnected
	DataStateSuspended
)

func (s DataConnectState) String() string {
	switch s {
	case DataStateDisconnected:
		return "disconnected"
	case DataStateConnecting:
		return "connecting"
	case DataStateConnected:
		return "connected"
	case DataStateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// DataFlowType is the direction of cellular data traffic.
type DataFlowType int32

const (
	DataFlowNone DataFlowType = iota
	DataFlowDown
	DataFlowUp
	DataFlowUpDown
	DataFlowDormant
)

func (d DataFlowType) String() string {
	switch d {
	case DataFlowDown:
		return "down"
	case DataFlowUp:
		return "up"
	case DataFlowUpDown:
		return "up/down"
	case DataFlowDormant:
		return "dormant"
	default:
		return "none"
	}
}
