package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

var (
	modem  = telephony.Identity{PID: 1, UID: 1001, TokenID: 0x99, BundleName: "telephony.core"}
	dialer = telephony.Identity{PID: 100, UID: 10001, TokenID: 0x1, BundleName: "com.example.dialer"}
	widget = telephony.Identity{PID: 200, UID: 10002, TokenID: 0x2, BundleName: "com.example.widget"}
)

type recorder struct {
	mu    sync.Mutex
	got   []telephony.Notification
	err   error
	block chan struct{}
}

func (r *recorder) Notify(_ context.Context, n telephony.Notification) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recorder) notifications() []telephony.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telephony.Notification(nil), r.got...)
}

func (r *recorder) waitLen(t *testing.T, n int) []telephony.Notification {
	t.Helper()
	require.Eventually(t, func() bool { return len(r.notifications()) >= n }, 2*time.Second, 5*time.Millisecond,
		"waiting for %d notifications", n)
	return r.notifications()
}

func testAuthorizer() *StaticAuthorizer {
	return NewStaticAuthorizer(map[telephony.Permission][]string{
		telephony.PermSetTelephonyState: {"1001"},
		telephony.PermGetNetworkInfo:    {"*"},
		telephony.PermReadCallLog:       {"com.example.dialer"},
	}, []string{"1001"})
}

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	b := NewBroker(Options{
		Slots:      telephony.SlotRange{Count: 2},
		Authorizer: testAuthorizer(),
	})
	t.Cleanup(b.Close)
	return b
}

func sub(slot telephony.SlotID, notifyNow bool, kinds ...telephony.EventKind) Subscription {
	return Subscription{Slot: slot, Mask: telephony.MaskOf(kinds...), NotifyNow: notifyNow}
}

func signal(level int) telephony.SignalStrengthInfo {
	return telephony.SignalStrengthInfo{Signals: []telephony.SignalInformation{{Network: telephony.RatLTE, Level: level}}}
}

func TestRegisterSameKindTwiceKeepsOneRecord(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}

	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindSignalStrength), obs))
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindSignalStrength), obs))
	assert.Equal(t, 1, b.Len())

	require.NoError(t, b.Update(context.Background(), modem, 0, signal(1)))
	require.NoError(t, b.Update(context.Background(), modem, 0, signal(2)))

	got := obs.waitLen(t, 2)
	require.Len(t, got, 2)
	assert.Equal(t, signal(1), got[0].Value)
	assert.Equal(t, signal(2), got[1].Value)
}

func TestRegisterMergesMaskIntoExistingRecord(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}

	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindCallState), obs))
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindSignalStrength), obs))

	d, err := b.Dump(modem)
	require.NoError(t, err)
	require.Len(t, d.Records, 1)
	assert.Equal(t, telephony.MaskOf(telephony.KindCallState, telephony.KindSignalStrength), d.Records[0].Mask)
}

func TestTwoCallersBothReceive(t *testing.T) {
	b := newTestBroker(t)
	a, w := &recorder{}, &recorder{}

	require.NoError(t, b.Register(dialer, sub(1, false, telephony.KindNetworkState), a))
	require.NoError(t, b.Register(widget, sub(1, false, telephony.KindNetworkState), w))
	assert.Equal(t, 2, b.Len())

	v := telephony.NetworkStateInfo{LongOperatorName: "Carrier", PLMN: "46000", RegState: telephony.RegStateInService}
	require.NoError(t, b.Update(context.Background(), modem, 1, v))

	assert.Equal(t, v, a.waitLen(t, 1)[0].Value)
	assert.Equal(t, v, w.waitLen(t, 1)[0].Value)
}

func TestMaskIndependence(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindCallState, telephony.KindSignalStrength), obs))

	ctx := context.Background()
	require.NoError(t, b.Update(ctx, modem, 0, telephony.NetworkStateInfo{PLMN: "46000"}))
	require.NoError(t, b.Update(ctx, modem, 0, signal(3)))
	require.NoError(t, b.Update(ctx, modem, 0, telephony.CallStateInfo{State: telephony.CallStatusIncoming}))

	got := obs.waitLen(t, 2)
	require.Len(t, got, 2)
	assert.Equal(t, telephony.KindSignalStrength, got[0].Kind)
	assert.Equal(t, telephony.KindCallState, got[1].Kind)
}

func TestWildcardCallState(t *testing.T) {
	b := newTestBroker(t)
	calls, sig := &recorder{}, &recorder{}

	require.NoError(t, b.Register(dialer, sub(telephony.AllSlots, false, telephony.KindCallState), calls))
	// Accepted, but never matched: wildcard is meaningless for signal strength.
	require.NoError(t, b.Register(widget, sub(telephony.AllSlots, false, telephony.KindSignalStrength), sig))
	require.NoError(t, b.Register(widget, sub(1, false, telephony.KindCallState), sig))

	ctx := context.Background()
	require.NoError(t, b.Update(ctx, modem, 0, signal(2)))
	require.NoError(t, b.Update(ctx, modem, 1, signal(2)))
	require.NoError(t, b.Update(ctx, modem, 0, telephony.CallStateInfo{State: telephony.CallStatusDialing}))
	require.NoError(t, b.Update(ctx, modem, 1, telephony.CallStateInfo{State: telephony.CallStatusActive}))

	got := calls.waitLen(t, 2)
	require.Len(t, got, 2)
	assert.Equal(t, telephony.SlotID(0), got[0].Slot)
	assert.Equal(t, telephony.SlotID(1), got[1].Slot)
	assert.Equal(t, telephony.AllSlots, got[0].Subscribed)

	// The slot-1 call state is ordered after both signal updates on the same
	// outbox, so once it arrives nothing else can.
	sg := sig.waitLen(t, 1)
	require.Len(t, sg, 1)
	assert.Equal(t, telephony.KindCallState, sg[0].Kind)
}

func TestWildcardIsNotAnUpdateTarget(t *testing.T) {
	b := newTestBroker(t)
	err := b.Update(context.Background(), modem, telephony.AllSlots, telephony.CallStateInfo{})
	assert.ErrorIs(t, err, telephony.ErrSlotID)

	err = b.Update(context.Background(), modem, 2, signal(1))
	assert.ErrorIs(t, err, telephony.ErrSlotID)
}

func TestVirtualSlotAcceptsUpdates(t *testing.T) {
	b := NewBroker(Options{Slots: telephony.SlotRange{Count: 1, Virtual: true}, Authorizer: AllowAll{}})
	defer b.Close()
	assert.NoError(t, b.Update(context.Background(), modem, 1, signal(1)))
	assert.ErrorIs(t, b.Update(context.Background(), modem, 2, signal(1)), telephony.ErrSlotID)
}

func TestNotifyNowDeliversCachedValue(t *testing.T) {
	b := newTestBroker(t)
	v := telephony.NetworkStateInfo{LongOperatorName: "Carrier", PLMN: "46001", Roaming: true}
	require.NoError(t, b.Update(context.Background(), modem, 0, v))

	now := &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, true, telephony.KindNetworkState), now))
	got := now.waitLen(t, 1)
	assert.Equal(t, v, got[0].Value)
	assert.Equal(t, telephony.SlotID(0), got[0].Slot)

	later := &recorder{}
	require.NoError(t, b.Register(widget, sub(0, false, telephony.KindNetworkState), later))
	next := telephony.NetworkStateInfo{PLMN: "46002"}
	require.NoError(t, b.Update(context.Background(), modem, 0, next))
	lg := later.waitLen(t, 1)
	require.Len(t, lg, 1)
	assert.Equal(t, next, lg[0].Value)
}

func TestNotifyNowOnlyForNewlyAddedKinds(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()
	require.NoError(t, b.Update(ctx, modem, 0, signal(4)))
	require.NoError(t, b.Update(ctx, modem, 0, telephony.SimStateData{State: telephony.SimReady}))

	obs := &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, true, telephony.KindSignalStrength), obs))
	obs.waitLen(t, 1)

	require.NoError(t, b.Register(dialer, sub(0, true, telephony.KindSignalStrength, telephony.KindSimState), obs))
	got := obs.waitLen(t, 2)

	// A live update queued behind the replay proves nothing else was sent.
	require.NoError(t, b.Update(ctx, modem, 0, signal(1)))
	got = obs.waitLen(t, 3)
	require.Len(t, got, 3)
	assert.Equal(t, telephony.KindSignalStrength, got[0].Kind)
	assert.Equal(t, telephony.KindSimState, got[1].Kind)
	assert.Equal(t, signal(1), got[2].Value)
}

func TestUpdatePermissionGate(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}
	require.NoError(t, b.Register(widget, sub(0, false, telephony.KindSignalStrength), obs))

	ctx := context.Background()
	require.NoError(t, b.Update(ctx, modem, 0, signal(2)))
	err := b.Update(ctx, dialer, 0, signal(0))
	require.ErrorIs(t, err, telephony.ErrPermissionDenied)

	cached, ok := b.Cached(0, telephony.KindSignalStrength)
	require.True(t, ok)
	assert.Equal(t, signal(2), cached)

	require.NoError(t, b.Update(ctx, modem, 0, signal(3)))
	got := obs.waitLen(t, 2)
	require.Len(t, got, 2)
	assert.Equal(t, signal(2), got[0].Value)
	assert.Equal(t, signal(3), got[1].Value)
}

func TestRegisterPermissionDeniedIsAllOrNothing(t *testing.T) {
	b := NewBroker(Options{
		Slots: telephony.SlotRange{Count: 1},
		Authorizer: NewStaticAuthorizer(map[telephony.Permission][]string{
			telephony.PermLocation: {"*"},
		}, nil),
	})
	defer b.Close()

	err := b.Register(dialer, sub(0, false, telephony.KindCallState, telephony.KindSignalStrength), &recorder{})
	require.ErrorIs(t, err, telephony.ErrPermissionDenied)
	assert.Equal(t, 0, b.Len())

	// Cell info needs both location permissions.
	err = b.Register(dialer, sub(0, false, telephony.KindCellInfo), &recorder{})
	require.ErrorIs(t, err, telephony.ErrPermissionDenied)
}

func TestSystemOnlyKinds(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}

	err := b.Register(dialer, sub(0, false, telephony.KindCfuIndicator), obs)
	assert.ErrorIs(t, err, telephony.ErrPermissionDenied)

	auth := testAuthorizer()
	auth.Grant(telephony.PermGetTelephonyState, "*")
	b2 := NewBroker(Options{Slots: telephony.SlotRange{Count: 1}, Authorizer: auth})
	defer b2.Close()

	err = b2.Register(dialer, sub(0, false, telephony.KindVoiceMailIndicator), obs)
	assert.ErrorIs(t, err, telephony.ErrIllegalAPIUse)
	require.NoError(t, b2.Register(modem, sub(0, false, telephony.KindVoiceMailIndicator), obs))

	err = b2.Unregister(dialer, 0, telephony.KindVoiceMailIndicator.Mask(), obs)
	assert.ErrorIs(t, err, telephony.ErrIllegalAPIUse)
	assert.NoError(t, b2.Unregister(modem, 0, telephony.KindVoiceMailIndicator.Mask(), obs))
}

func TestUnregisterIdempotent(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}
	m := telephony.MaskOf(telephony.KindCallState, telephony.KindSignalStrength)
	require.NoError(t, b.Register(dialer, Subscription{Slot: 0, Mask: m}, obs))

	require.NoError(t, b.Unregister(dialer, 0, telephony.KindCallState.Mask(), obs))
	assert.Equal(t, 1, b.Len())

	require.NoError(t, b.Unregister(dialer, 0, m, obs))
	assert.Equal(t, 0, b.Len())

	err := b.Unregister(dialer, 0, m, obs)
	assert.ErrorIs(t, err, telephony.ErrNotFound)
	assert.Equal(t, 0, b.Len())
}

func TestUnregisterKeysOnPidAndToken(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindCallState), obs))

	impostor := dialer
	impostor.TokenID = 0x7
	assert.ErrorIs(t, b.Unregister(impostor, 0, telephony.KindCallState.Mask(), obs), telephony.ErrNotFound)
	assert.ErrorIs(t, b.Unregister(dialer, 1, telephony.KindCallState.Mask(), obs), telephony.ErrNotFound)
	assert.ErrorIs(t, b.Unregister(dialer, 0, telephony.KindSimState.Mask(), obs), telephony.ErrNotFound)
	assert.ErrorIs(t, b.Unregister(dialer, 0, telephony.KindCallState.Mask(), &recorder{}), telephony.ErrNotFound)
	assert.Equal(t, 1, b.Len())
}

func TestCallNumberRedactedPerRecord(t *testing.T) {
	b := newTestBroker(t)
	withLog, withoutLog := &recorder{}, &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindCallState), withLog))
	require.NoError(t, b.Register(widget, sub(0, false, telephony.KindCallState), withoutLog))

	v := telephony.CallStateInfo{State: telephony.CallStatusIncoming, Number: "13800000000"}
	require.NoError(t, b.Update(context.Background(), modem, 0, v))

	assert.Equal(t, "13800000000", withLog.waitLen(t, 1)[0].Value.(telephony.CallStateInfo).Number)
	assert.Equal(t, "", withoutLog.waitLen(t, 1)[0].Value.(telephony.CallStateInfo).Number)

	cached, _ := b.Cached(0, telephony.KindCallState)
	assert.Equal(t, v, cached)
}

func TestHookRewritesCachedValue(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindNetworkState), obs))

	var seen []RecordView
	b.Use(telephony.KindNetworkState, func(_ telephony.EventKind, _ telephony.SlotID, records []RecordView, v telephony.Value) telephony.Value {
		seen = records
		ns := v.(telephony.NetworkStateInfo)
		ns.LongOperatorName = "Renamed"
		return ns
	})
	// Wrong kind: ignored.
	b.Use(telephony.KindNetworkState, func(telephony.EventKind, telephony.SlotID, []RecordView, telephony.Value) telephony.Value {
		return telephony.SimActiveStateInfo{}
	})

	require.NoError(t, b.Update(context.Background(), modem, 0, telephony.NetworkStateInfo{LongOperatorName: "Orig"}))

	got := obs.waitLen(t, 1)
	assert.Equal(t, "Renamed", got[0].Value.(telephony.NetworkStateInfo).LongOperatorName)
	cached, _ := b.Cached(0, telephony.KindNetworkState)
	assert.Equal(t, "Renamed", cached.(telephony.NetworkStateInfo).LongOperatorName)
	require.Len(t, seen, 1)
	assert.Equal(t, dialer, seen[0].Identity)
}

func TestDeadObserverIsRemoved(t *testing.T) {
	b := newTestBroker(t)
	dead := &recorder{err: errors.New("peer gone")}
	alive := &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindSignalStrength), dead))
	require.NoError(t, b.Register(dialer, sub(1, false, telephony.KindSignalStrength), dead))
	require.NoError(t, b.Register(widget, sub(0, false, telephony.KindSignalStrength), alive))

	require.NoError(t, b.Update(context.Background(), modem, 0, signal(1)))
	alive.waitLen(t, 1)
	require.Eventually(t, func() bool { return b.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, b.Update(context.Background(), modem, 0, signal(2)))
	assert.Len(t, alive.waitLen(t, 2), 2)
	assert.Len(t, dead.notifications(), 1)
}

func TestUpdatesDeliveredInOrder(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindSignalStrength), obs))

	const n = 50
	for i := 0; i < n; i++ {
		require.NoError(t, b.Update(context.Background(), modem, 0, signal(i)))
	}
	got := obs.waitLen(t, n)
	for i, note := range got {
		assert.Equal(t, signal(i), note.Value)
	}
}

func TestFullOutboxDropsWithoutBlocking(t *testing.T) {
	b := NewBroker(Options{Slots: telephony.SlotRange{Count: 1}, Authorizer: testAuthorizer(), OutboxSize: 1})
	slow := &recorder{block: make(chan struct{})}
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindSignalStrength), slow))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_ = b.Update(context.Background(), modem, 0, signal(i))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Update blocked on a slow observer")
	}

	close(slow.block)
	b.Close()
	assert.Less(t, len(slow.notifications()), 10)
}

func TestObserversOfOneCallerKeepSeparateRecords(t *testing.T) {
	b := newTestBroker(t)
	first, second := &recorder{}, &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindSignalStrength), first))
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindNetworkState), second))
	assert.Equal(t, 2, b.Len())

	ctx := context.Background()
	require.NoError(t, b.Update(ctx, modem, 0, signal(1)))
	require.NoError(t, b.Update(ctx, modem, 0, telephony.NetworkStateInfo{PLMN: "46000"}))

	got := first.waitLen(t, 1)
	assert.Equal(t, telephony.KindSignalStrength, got[0].Kind)
	got = second.waitLen(t, 1)
	assert.Equal(t, telephony.KindNetworkState, got[0].Kind)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, first.notifications(), 1)
	assert.Len(t, second.notifications(), 1)

	assert.Equal(t, 1, b.RemoveObserver(second))
	assert.Equal(t, 1, b.Len())
	require.NoError(t, b.Update(ctx, modem, 0, signal(2)))
	first.waitLen(t, 2)

	err := b.Unregister(dialer, 0, telephony.KindSignalStrength.Mask(), second)
	assert.ErrorIs(t, err, telephony.ErrNotFound)
	require.NoError(t, b.Unregister(dialer, 0, telephony.KindSignalStrength.Mask(), first))
	assert.Equal(t, 0, b.Len())
}

func TestRemoveObserver(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}
	require.NoError(t, b.Register(dialer, sub(0, false, telephony.KindSignalStrength), obs))
	require.NoError(t, b.Register(dialer, sub(1, false, telephony.KindSignalStrength), obs))
	require.NoError(t, b.Register(widget, sub(0, false, telephony.KindSignalStrength), &recorder{}))

	assert.Equal(t, 2, b.RemoveObserver(obs))
	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 0, b.RemoveObserver(obs))
}

func TestInvalidArguments(t *testing.T) {
	b := newTestBroker(t)
	assert.ErrorIs(t, b.Register(dialer, sub(0, false, telephony.KindCallState), nil), telephony.ErrInvalidArgument)
	assert.ErrorIs(t, b.Register(dialer, Subscription{Slot: 0}, &recorder{}), telephony.ErrInvalidArgument)
	assert.ErrorIs(t, b.Unregister(dialer, 0, 0, &recorder{}), telephony.ErrInvalidArgument)
	assert.ErrorIs(t, b.Update(context.Background(), modem, 0, nil), telephony.ErrInvalidArgument)
}

func TestClosedBrokerIsUnavailable(t *testing.T) {
	b := NewBroker(Options{Slots: telephony.SlotRange{Count: 1}, Authorizer: AllowAll{}})
	b.Close()
	b.Close()

	assert.ErrorIs(t, b.Register(dialer, sub(0, false, telephony.KindCallState), &recorder{}), telephony.ErrServiceUnavailable)
	assert.ErrorIs(t, b.Update(context.Background(), modem, 0, signal(1)), telephony.ErrServiceUnavailable)
}

func TestDump(t *testing.T) {
	b := newTestBroker(t)
	require.NoError(t, b.Register(dialer, Subscription{Slot: 1, Mask: telephony.KindSignalStrength.Mask(), BundleName: "com.example.dialer"}, &recorder{}))
	require.NoError(t, b.Update(context.Background(), modem, 1, signal(2)))
	require.NoError(t, b.Update(context.Background(), modem, 0, telephony.SimActiveStateInfo{Active: true}))

	_, err := b.Dump(dialer)
	assert.ErrorIs(t, err, telephony.ErrIllegalAPIUse)

	d, err := b.Dump(modem)
	require.NoError(t, err)
	require.Len(t, d.Records, 1)
	assert.Equal(t, "com.example.dialer", d.Records[0].BundleName)
	assert.NotEmpty(t, d.Records[0].ID)
	assert.Equal(t, 1, d.Observers)
	assert.Equal(t, []CachedEntry{
		{Slot: 0, Kinds: []telephony.EventKind{telephony.KindSimActiveState}},
		{Slot: 1, Kinds: []telephony.EventKind{telephony.KindSignalStrength}},
	}, d.Cached)
}

func TestBoundProducerUsesItsIdentity(t *testing.T) {
	b := newTestBroker(t)
	obs := &recorder{}
	require.NoError(t, b.Register(widget, sub(1, false, telephony.KindSignalStrength), obs))

	require.NoError(t, b.Bind(modem).Update(context.Background(), 1, signal(2)))
	assert.Len(t, obs.waitLen(t, 1), 1)

	err := b.Bind(widget).Update(context.Background(), 1, signal(3))
	assert.ErrorIs(t, err, telephony.ErrPermissionDenied)
}
