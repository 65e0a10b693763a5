package mock

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/logger"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// Producer accepts state updates. Both *registry.Broker (bound to an
// identity) and *rpc.Client satisfy it.
type Producer interface {
	Update(ctx context.Context, slot telephony.SlotID, v telephony.Value) error
}

type mockSlot struct {
	slot     telephony.SlotID
	pattern  string
	plmn     string
	operator string
	radio    telephony.RatType
	sim      telephony.SimStatus
	calls    []telephony.CallStatus
	callIdx  int
	number   string
	cellID   int64
	flowIdx  int
}

var flowCycle = []telephony.DataFlowType{
	telephony.DataFlowDown,
	telephony.DataFlowUpDown,
	telephony.DataFlowUp,
	telephony.DataFlowNone,
	telephony.DataFlowDormant,
}

var callCycle = []telephony.CallStatus{
	telephony.CallStatusIdle,
	telephony.CallStatusIncoming,
	telephony.CallStatusActive,
	telephony.CallStatusHolding,
	telephony.CallStatusActive,
	telephony.CallStatusDisconnecting,
	telephony.CallStatusDisconnected,
}

func NewGenerator(p Producer, slots telephony.SlotRange, interval time.Duration, log *slog.Logger) *Generator {
	return &Generator{
		producer: p,
		slots:    slots,
		interval: interval,
		log:      logger.OrDiscard(log),
	}
}

// Generator plays a simulated modem against a Producer, one update per kind
// per slot on every tick.
type Generator struct {
	producer Producer
	slots    telephony.SlotRange
	interval time.Duration
	log      *slog.Logger
	modems   []*mockSlot
}

func (g *Generator) init() {
	patterns := []string{"steady", "roaming", "flaky"}
	operators := []struct{ plmn, name string }{
		{"46000", "China Mobile"},
		{"46001", "China Unicom"},
		{"46011", "China Telecom"},
	}
	g.modems = g.modems[:0]
	for i, s := range g.slots.Slots() {
		op := operators[i%len(operators)]
		g.modems = append(g.modems, &mockSlot{
			slot:     s,
			pattern:  patterns[i%len(patterns)],
			plmn:     op.plmn,
			operator: op.name,
			radio:    telephony.RatLTE,
			sim:      telephony.SimNotReady,
			calls:    callCycle,
			number:   "1380013800" + string(rune('0'+i%10)),
			cellID:   int64(10000 + i*100),
		})
	}
}

// Start publishes an initial update for every kind on every slot, then
// keeps publishing on each tick until ctx ends.
func (g *Generator) Start(ctx context.Context) {
	g.init()
	g.tick(ctx, 0)
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			g.tick(ctx, tick)
		}
	}
}

func (g *Generator) tick(ctx context.Context, tick int) {
	for _, ms := range g.modems {
		for _, v := range g.advance(ms, tick) {
			if err := g.producer.Update(ctx, ms.slot, v); err != nil {
				if ctx.Err() != nil {
					return
				}
				g.log.Warn("mock update failed", logger.Slot(ms.slot), logger.Kind(v.Kind()), logger.Error(err))
			}
		}
	}
}

// advance moves one slot forward and returns the values to publish, one per
// kind, in kind order.
func (g *Generator) advance(ms *mockSlot, tick int) []telephony.Value {
	if tick == 2 && ms.sim == telephony.SimNotReady {
		ms.sim = telephony.SimReady
	} else if tick >= 3 {
		ms.sim = telephony.SimLoaded
	}

	roaming := false
	reg := telephony.RegStateInService
	switch ms.pattern {
	case "roaming":
		roaming = tick%10 >= 5
	case "flaky":
		if tick%7 == 6 {
			reg = telephony.RegStateSearch
		}
	}
	if tick%9 == 8 {
		ms.radio = telephony.RatNR
	} else {
		ms.radio = telephony.RatLTE
	}

	level := g.signalLevel(ms, tick)
	if reg != telephony.RegStateInService {
		level = 0
	}

	call := ms.calls[ms.callIdx%len(ms.calls)]
	if tick%3 == 0 {
		ms.callIdx++
	}
	number := ""
	if call != telephony.CallStatusIdle {
		number = ms.number
	}

	dataState := telephony.DataStateConnected
	if reg != telephony.RegStateInService {
		dataState = telephony.DataStateDisconnected
	}
	flow := telephony.DataFlowNone
	if dataState == telephony.DataStateConnected {
		flow = flowCycle[ms.flowIdx%len(flowCycle)]
		ms.flowIdx++
	}

	return []telephony.Value{
		telephony.CallStateInfo{State: call, Number: number},
		telephony.SignalStrengthInfo{Signals: []telephony.SignalInformation{
			{Network: ms.radio, Level: level, Dbm: -140 + level*15 + rand.Intn(5)},
		}},
		telephony.NetworkStateInfo{
			LongOperatorName:  ms.operator,
			ShortOperatorName: ms.operator,
			PLMN:              ms.plmn,
			Roaming:           roaming,
			RegState:          reg,
			Radio:             ms.radio,
		},
		telephony.SimStateData{Type: telephony.CardSingleModeUSIM, State: ms.sim},
		telephony.CellInfoList{Cells: []telephony.CellInformation{{
			Type:        ms.radio,
			Camped:      true,
			Timestamp:   time.Now().UnixMilli(),
			SignalLevel: level,
			MCC:         ms.plmn[:3],
			MNC:         ms.plmn[3:],
			CellID:      ms.cellID + int64(tick%4),
			Area:        4352,
			Channel:     1850,
		}}},
		telephony.DataConnectionStateInfo{State: dataState, Network: ms.radio},
		telephony.DataFlowInfo{Direction: flow},
		telephony.CfuIndicatorInfo{Active: tick%20 >= 15},
		telephony.VoiceMailIndicatorInfo{Active: tick%12 == 11},
		telephony.IccAccountInfo{},
		telephony.SimActiveStateInfo{Active: ms.sim == telephony.SimLoaded},
	}
}

func (g *Generator) signalLevel(ms *mockSlot, tick int) int {
	switch ms.pattern {
	case "steady":
		return 4
	case "flaky":
		return rand.Intn(5)
	default:
		// Drifts between 1 and 5 as the phone moves.
		return 3 + int(math.Round(2*math.Sin(float64(tick)/4.0)))
	}
}
