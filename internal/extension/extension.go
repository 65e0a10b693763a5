// Package extension holds the built-in vendor hooks that rewrite updates
// before the broker caches and forwards them.
package extension

import (
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/config"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/registry"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// OperatorNames replaces the operator display names of a network state
// whose PLMN has an entry in names.
func OperatorNames(names map[string]string) registry.Hook {
	return func(_ telephony.EventKind, _ telephony.SlotID, _ []registry.RecordView, v telephony.Value) telephony.Value {
		ns, ok := v.(telephony.NetworkStateInfo)
		if !ok {
			return v
		}
		name, ok := names[ns.PLMN]
		if !ok || name == "" {
			return v
		}
		ns.LongOperatorName = name
		ns.ShortOperatorName = name
		return ns
	}
}

// SignalCap clamps every reported signal level to [0, limit].
func SignalCap(limit int) registry.Hook {
	return func(_ telephony.EventKind, _ telephony.SlotID, _ []registry.RecordView, v telephony.Value) telephony.Value {
		ss, ok := v.(telephony.SignalStrengthInfo)
		if !ok {
			return v
		}
		out := ss.Clone().(telephony.SignalStrengthInfo)
		for i := range out.Signals {
			out.Signals[i].Level = min(max(0, out.Signals[i].Level), limit)
		}
		return out
	}
}

// Install registers the hooks enabled by cfg on b and returns how many were
// installed.
func Install(b *registry.Broker, cfg config.ExtensionsConfig) int {
	n := 0
	if len(cfg.OperatorNames) > 0 {
		b.Use(telephony.KindNetworkState, OperatorNames(cfg.OperatorNames))
		n++
	}
	if cfg.MaxSignalLevel > 0 {
		b.Use(telephony.KindSignalStrength, SignalCap(cfg.MaxSignalLevel))
		n++
	}
	return n
}
