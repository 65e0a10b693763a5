package telephony

import (
	"encoding/json"
	"fmt"
)

var decoders = map[EventKind]func(json.RawMessage) (Value, error){
	KindCallState:           decodeAs[CallStateInfo],
	KindSignalStrength:      decodeAs[SignalStrengthInfo],
	KindNetworkState:        decodeAs[NetworkStateInfo],
	KindSimState:            decodeAs[SimStateData],
	KindCellInfo:            decodeAs[CellInfoList],
	KindDataConnectionState: decodeAs[DataConnectionStateInfo],
	KindDataFlow:            decodeAs[DataFlowInfo],
	KindCfuIndicator:        decodeAs[CfuIndicatorInfo],
	KindVoiceMailIndicator:  decodeAs[VoiceMailIndicatorInfo],
	KindIccAccountChange:    decodeAs[IccAccountInfo],
	KindSimActiveState:      decodeAs[SimActiveStateInfo],
}

func decodeAs[T Value](raw json.RawMessage) (Value, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeValue encodes v for the wire.
func EncodeValue(v Value) (json.RawMessage, error) {
	if v == nil {
		return nil, fmt.Errorf("encode value: %w", ErrInvalidArgument)
	}
	return json.Marshal(v)
}

// DecodeValue decodes a payload previously produced by EncodeValue for kind k.
func DecodeValue(k EventKind, raw json.RawMessage) (Value, error) {
	decode, ok := decoders[k]
	if !ok {
		return nil, fmt.Errorf("decode %s: %w", k, ErrInvalidArgument)
	}
	v, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", k, ErrInvalidArgument, err)
	}
	return v, nil
}
