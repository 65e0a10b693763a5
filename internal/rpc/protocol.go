// Package rpc carries the registry protocol between subscriber processes and
// the registry service: JSON frames over a websocket on a unix socket.
//
// Every call frame is answered by exactly one reply frame with the same
// sequence number. Notifications flow from server to client as notify
// frames, in the order the broker issued them for that connection.
package rpc

import (
	"encoding/json"
	"strings"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

type FrameType string

const (
	FrameCall   FrameType = "call"
	FrameReply  FrameType = "reply"
	FrameNotify FrameType = "notify"
)

type Frame struct {
	Seq     uint64          `json:"seq,omitempty"`
	Type    FrameType       `json:"type"`
	Method  string          `json:"method,omitempty"`
	Code    telephony.Code  `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	MethodRegister   = "register"
	MethodUnregister = "unregister"
	MethodDump       = "dump"

	updatePrefix = "update."
)

// UpdateMethod returns the method name for updates of kind k.
func UpdateMethod(k telephony.EventKind) string {
	return updatePrefix + k.String()
}

// updateKind parses a method produced by UpdateMethod.
func updateKind(method string) (telephony.EventKind, bool) {
	name, ok := strings.CutPrefix(method, updatePrefix)
	if !ok {
		return 0, false
	}
	k, err := telephony.ParseKind(name)
	return k, err == nil
}

type RegisterRequest struct {
	Slot       telephony.SlotID `json:"slotId"`
	Mask       telephony.Mask   `json:"mask"`
	BundleName string           `json:"bundleName,omitempty"`
	NotifyNow  bool             `json:"notifyNow,omitempty"`
}

type UnregisterRequest struct {
	Slot telephony.SlotID `json:"slotId"`
	Mask telephony.Mask   `json:"mask"`
}

type UpdateRequest struct {
	Slot  telephony.SlotID `json:"slotId"`
	Value json.RawMessage  `json:"value"`
}

type NotifyPayload struct {
	Slot       telephony.SlotID    `json:"slotId"`
	Subscribed telephony.SlotID    `json:"subscribed"`
	Kind       telephony.EventKind `json:"kind"`
	Value      json.RawMessage     `json:"value"`
}

func encodeNotification(n telephony.Notification) (NotifyPayload, error) {
	raw, err := telephony.EncodeValue(n.Value)
	if err != nil {
		return NotifyPayload{}, err
	}
	return NotifyPayload{Slot: n.Slot, Subscribed: n.Subscribed, Kind: n.Kind, Value: raw}, nil
}

func (p NotifyPayload) decode() (telephony.Notification, error) {
	v, err := telephony.DecodeValue(p.Kind, p.Value)
	if err != nil {
		return telephony.Notification{}, err
	}
	return telephony.Notification{Slot: p.Slot, Subscribed: p.Subscribed, Kind: p.Kind, Value: v}, nil
}
