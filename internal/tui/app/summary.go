package app

import (
	"fmt"
	"strings"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/tui/theme"
)

// Summary renders a one-line description of v.
func Summary(v telephony.Value) string {
	switch v := v.(type) {
	case telephony.CallStateInfo:
		s := v.State.State()
		out := theme.CallGlyph(s) + " " + s.String()
		if v.Number != "" {
			out += " " + v.Number
		}
		return out
	case telephony.SignalStrengthInfo:
		if len(v.Signals) == 0 {
			return "no signal"
		}
		parts := make([]string, 0, len(v.Signals))
		for _, s := range v.Signals {
			p := s.Network.String() + " " + theme.SignalBars(s.Level)
			if s.Dbm != 0 {
				p += fmt.Sprintf(" %ddBm", s.Dbm)
			}
			parts = append(parts, p)
		}
		return strings.Join(parts, "  ")
	case telephony.NetworkStateInfo:
		name := v.LongOperatorName
		if name == "" {
			name = v.PLMN
		}
		out := fmt.Sprintf("%s (%s) %s %s", name, v.PLMN, v.RegState.Status(), v.Radio)
		if v.Roaming {
			out += " roaming"
		}
		if v.Emergency {
			out += " emergency"
		}
		return out
	case telephony.SimStateData:
		if v.State == telephony.SimLocked {
			return fmt.Sprintf("%s (reason %d)", v.State, v.Reason)
		}
		return v.State.String()
	case telephony.CellInfoList:
		for _, c := range v.Cells {
			if c.Camped {
				return fmt.Sprintf("%d cells, camped on %d (%s %s-%s)", len(v.Cells), c.CellID, c.Type, c.MCC, c.MNC)
			}
		}
		return fmt.Sprintf("%d cells", len(v.Cells))
	case telephony.DataConnectionStateInfo:
		return fmt.Sprintf("%s %s", v.State, v.Network)
	case telephony.DataFlowInfo:
		return v.Direction.String()
	case telephony.CfuIndicatorInfo:
		return onOff(v.Active)
	case telephony.VoiceMailIndicatorInfo:
		return onOff(v.Active)
	case telephony.IccAccountInfo:
		return "changed"
	case telephony.SimActiveStateInfo:
		if v.Active {
			return "active"
		}
		return "inactive"
	case nil:
		return "-"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
