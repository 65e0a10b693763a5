package rpc

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/registry"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

var (
	modem  = telephony.Identity{PID: 1, UID: 1001, TokenID: 0x99}
	dialer = telephony.Identity{PID: 100, UID: 10001, TokenID: 0x1}
)

func testAuthorizer() registry.Authorizer {
	return registry.NewStaticAuthorizer(map[telephony.Permission][]string{
		telephony.PermSetTelephonyState: {"1001"},
		telephony.PermGetNetworkInfo:    {"*"},
	}, []string{"1001"})
}

// identities hands out one identity per accepted connection, in order.
func identities(ids ...telephony.Identity) IdentityResolver {
	var n atomic.Int32
	return func(context.Context, net.Conn) (telephony.Identity, error) {
		i := int(n.Add(1)) - 1
		return ids[i%len(ids)], nil
	}
}

type testEnv struct {
	broker *registry.Broker
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, opts ServerOptions) *testEnv {
	t.Helper()
	b := registry.NewBroker(registry.Options{
		Slots:      telephony.SlotRange{Count: 2},
		Authorizer: testAuthorizer(),
	})
	s := NewServer(b, opts)
	srv := httptest.NewUnstartedServer(s)
	srv.Config.ConnContext = s.ConnContext
	srv.Start()
	t.Cleanup(func() {
		s.closeAll()
		srv.Close()
		b.Close()
	})
	return &testEnv{broker: b, server: s, http: srv}
}

func (e *testEnv) dial(t *testing.T, opts ClientOptions) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := DialContext(ctx, "tcp", e.http.Listener.Addr().String(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

type inbox struct {
	mu  sync.Mutex
	got []telephony.Notification
}

func (in *inbox) handle(n telephony.Notification) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.got = append(in.got, n)
}

func (in *inbox) wait(t *testing.T, n int) []telephony.Notification {
	t.Helper()
	var out []telephony.Notification
	require.Eventually(t, func() bool {
		in.mu.Lock()
		defer in.mu.Unlock()
		out = append(out[:0], in.got...)
		return len(out) >= n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d notifications", n)
	return out
}

func TestRegisterUpdateRoundTrip(t *testing.T) {
	env := newTestEnv(t, ServerOptions{Resolve: identities(dialer, modem)})
	box := &inbox{}
	sub := env.dial(t, ClientOptions{Handler: box.handle, BundleName: "com.example.dialer"})
	pub := env.dial(t, ClientOptions{})
	ctx := context.Background()

	require.NoError(t, sub.RegisterStateChange(ctx, 0, telephony.MaskOf(telephony.KindSignalStrength, telephony.KindCallState), false))

	sig := telephony.SignalStrengthInfo{Signals: []telephony.SignalInformation{{Network: telephony.RatNR, Level: 4, Dbm: -80}}}
	require.NoError(t, pub.Update(ctx, 0, sig))
	require.NoError(t, pub.Update(ctx, 0, telephony.CallStateInfo{State: telephony.CallStatusIncoming, Number: "10086"}))

	got := box.wait(t, 2)
	assert.Equal(t, sig, got[0].Value)
	assert.Equal(t, telephony.SlotID(0), got[0].Slot)
	// No READ_CALL_LOG grant: the number never crosses the wire.
	assert.Equal(t, telephony.CallStateInfo{State: telephony.CallStatusIncoming}, got[1].Value)

	d, err := pub.Dump(ctx)
	require.NoError(t, err)
	require.Len(t, d.Records, 1)
	assert.Equal(t, "com.example.dialer", d.Records[0].BundleName)
	assert.Equal(t, dialer, d.Records[0].Identity)
}

func TestErrorCodesCrossTheWire(t *testing.T) {
	env := newTestEnv(t, ServerOptions{Resolve: identities(dialer)})
	c := env.dial(t, ClientOptions{})
	ctx := context.Background()

	err := c.Update(ctx, 0, telephony.SimStateData{State: telephony.SimReady})
	assert.ErrorIs(t, err, telephony.ErrPermissionDenied)

	err = c.UnregisterStateChange(ctx, 0, telephony.KindCallState.Mask())
	assert.ErrorIs(t, err, telephony.ErrNotFound)

	err = c.RegisterStateChange(ctx, 0, 0, false)
	assert.ErrorIs(t, err, telephony.ErrInvalidArgument)

	_, err = c.Dump(ctx)
	assert.ErrorIs(t, err, telephony.ErrIllegalAPIUse)

	err = c.Call(ctx, "reboot", nil, nil)
	assert.ErrorIs(t, err, telephony.ErrInvalidArgument)
}

func TestNotifyNowOverTheWire(t *testing.T) {
	env := newTestEnv(t, ServerOptions{Resolve: identities(modem, dialer)})
	pub := env.dial(t, ClientOptions{})
	ctx := context.Background()

	v := telephony.NetworkStateInfo{LongOperatorName: "Carrier", PLMN: "46000", RegState: telephony.RegStateInService}
	require.NoError(t, pub.Update(ctx, 1, v))

	box := &inbox{}
	sub := env.dial(t, ClientOptions{Handler: box.handle})
	require.NoError(t, sub.RegisterStateChange(ctx, 1, telephony.KindNetworkState.Mask(), true))

	got := box.wait(t, 1)
	assert.Equal(t, v, got[0].Value)
}

func TestDisconnectDropsRegistrations(t *testing.T) {
	env := newTestEnv(t, ServerOptions{Resolve: identities(dialer)})
	c := env.dial(t, ClientOptions{})

	require.NoError(t, c.RegisterStateChange(context.Background(), 0, telephony.KindCallState.Mask(), false))
	require.NoError(t, c.RegisterStateChange(context.Background(), 1, telephony.KindCallState.Mask(), false))
	assert.Equal(t, 2, env.broker.Len())

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool {
		return env.broker.Len() == 0 && env.server.ConnCount() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCallAfterServerGoneIsUnavailable(t *testing.T) {
	env := newTestEnv(t, ServerOptions{Resolve: identities(dialer)})
	c := env.dial(t, ClientOptions{})

	env.server.closeAll()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the server closing")
	}
	err := c.RegisterStateChange(context.Background(), 0, telephony.KindCallState.Mask(), false)
	assert.ErrorIs(t, err, telephony.ErrServiceUnavailable)
}

func TestConnectionLimit(t *testing.T) {
	env := newTestEnv(t, ServerOptions{Resolve: identities(dialer), MaxConnections: 1})
	env.dial(t, ClientOptions{})
	require.Eventually(t, func() bool { return env.server.ConnCount() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := DialContext(ctx, "tcp", env.http.Listener.Addr().String(), ClientOptions{})
	assert.ErrorIs(t, err, telephony.ErrServiceUnavailable)
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	env := newTestEnv(t, ServerOptions{Resolve: identities(dialer)})
	wsURL := "ws" + strings.TrimPrefix(env.http.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameReply, Seq: 9}))

	payload, _ := json.Marshal(RegisterRequest{Slot: 0, Mask: telephony.KindCallState.Mask()})
	require.NoError(t, conn.WriteJSON(Frame{Seq: 7, Type: FrameCall, Method: MethodRegister, Payload: payload}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply Frame
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, FrameReply, reply.Type)
	assert.Equal(t, uint64(7), reply.Seq)
	assert.Equal(t, telephony.CodeSuccess, reply.Code)
}

func TestUpdateMethodTable(t *testing.T) {
	s := NewServer(registry.NewBroker(registry.Options{}), ServerOptions{})
	for _, k := range telephony.AllKinds {
		_, ok := s.methods[UpdateMethod(k)]
		assert.True(t, ok, "no handler for %s", k)

		got, ok := updateKind(UpdateMethod(k))
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := updateKind("update.weather")
	assert.False(t, ok)
}

func TestUnixSocketPeerIdentity(t *testing.T) {
	b := registry.NewBroker(registry.Options{Slots: telephony.SlotRange{Count: 1}, Authorizer: registry.AllowAll{}})
	defer b.Close()
	s := NewServer(b, ServerOptions{})

	dir, err := os.MkdirTemp("", "tsr")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "rpc.sock")

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.ListenAndServe(ctx, sock) }()
	defer func() {
		cancel()
		<-served
	}()

	var c *Client
	require.Eventually(t, func() bool {
		c, err = Dial(context.Background(), sock, ClientOptions{})
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer c.Close()

	require.NoError(t, c.RegisterStateChange(context.Background(), 0, telephony.KindSimState.Mask(), false))
	d, err := c.Dump(context.Background())
	require.NoError(t, err)
	require.Len(t, d.Records, 1)
	assert.Equal(t, int32(os.Getpid()), d.Records[0].Identity.PID)
	assert.Equal(t, uint32(os.Getuid()), d.Records[0].Identity.UID)
	assert.NotZero(t, d.Records[0].Identity.TokenID)
}

func TestPeerIdentityWithoutConn(t *testing.T) {
	_, err := PeerIdentity(context.Background(), nil)
	assert.ErrorIs(t, err, errNoCreds)
	assert.Equal(t, tokenID("/usr/bin/dialer"), tokenID("/usr/bin/dialer"))
	assert.NotEqual(t, tokenID("/usr/bin/dialer"), tokenID("/usr/bin/widget"))
	assert.Zero(t, tokenID(""))
}

func TestTwoClientsOfOneProcessStaySeparate(t *testing.T) {
	env := newTestEnv(t, ServerOptions{Resolve: identities(dialer, dialer, modem)})
	signalBox, networkBox := &inbox{}, &inbox{}
	a := env.dial(t, ClientOptions{Handler: signalBox.handle})
	b := env.dial(t, ClientOptions{Handler: networkBox.handle})
	pub := env.dial(t, ClientOptions{})
	ctx := context.Background()
	sig := telephony.SignalStrengthInfo{Signals: []telephony.SignalInformation{{Network: telephony.RatNR, Level: 3}}}

	require.NoError(t, a.RegisterStateChange(ctx, 0, telephony.KindSignalStrength.Mask(), false))
	require.NoError(t, b.RegisterStateChange(ctx, 0, telephony.KindNetworkState.Mask(), false))
	assert.Equal(t, 2, env.broker.Len())

	require.NoError(t, pub.Update(ctx, 0, sig))
	got := signalBox.wait(t, 1)
	assert.Equal(t, telephony.KindSignalStrength, got[0].Kind)

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return env.broker.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, pub.Update(ctx, 0, sig))
	signalBox.wait(t, 2)
	networkBox.mu.Lock()
	defer networkBox.mu.Unlock()
	assert.Empty(t, networkBox.got)
}
