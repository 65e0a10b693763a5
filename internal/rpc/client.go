package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/logger"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/registry"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
)

// NotifyHandler receives notifications in the order the server sent them.
type NotifyHandler func(telephony.Notification)

type ClientOptions struct {
	// BundleName is sent with every registration.
	BundleName   string
	Handler      NotifyHandler
	WriteTimeout time.Duration
	PingInterval time.Duration
	Logger       *slog.Logger
}

// Client is the proxy side of the protocol. Calls may be issued from any
// goroutine; each waits for its own reply.
type Client struct {
	ws   *websocket.Conn
	opts ClientOptions
	log  *slog.Logger

	writeMu sync.Mutex // serialises all conn writes

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]chan Frame
	err     error

	notifyMu sync.Mutex
	notifyQ  []telephony.Notification
	notifyCh chan struct{}

	done chan struct{}
	wg   sync.WaitGroup
}

// Dial connects to the registry service listening on a unix socket.
func Dial(ctx context.Context, socket string, opts ClientOptions) (*Client, error) {
	return DialContext(ctx, "unix", socket, opts)
}

// DialContext connects over an arbitrary stream network.
func DialContext(ctx context.Context, network, addr string, opts ClientOptions) (*Client, error) {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
		HandshakeTimeout: opts.WriteTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, "ws://telephony-state-registry/", nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %v", addr, telephony.ErrServiceUnavailable, err)
	}

	c := &Client{
		ws:       ws,
		opts:     opts,
		log:      logger.OrDiscard(opts.Logger),
		pending:  make(map[uint64]chan Frame),
		notifyCh: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	c.wg.Add(3)
	go c.readLoop()
	go c.notifyLoop()
	go c.pingLoop()
	return c, nil
}

// SetHandler replaces the notification handler. Notifications received
// while no handler is set are dropped.
func (c *Client) SetHandler(h NotifyHandler) {
	c.notifyMu.Lock()
	c.opts.Handler = h
	c.notifyMu.Unlock()
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the connection and waits for the client's goroutines.
func (c *Client) Close() error {
	err := c.ws.Close()
	c.wg.Wait()
	return err
}

func (c *Client) RegisterStateChange(ctx context.Context, slot telephony.SlotID, mask telephony.Mask, notifyNow bool) error {
	req := RegisterRequest{Slot: slot, Mask: mask, BundleName: c.opts.BundleName, NotifyNow: notifyNow}
	return c.Call(ctx, MethodRegister, req, nil)
}

func (c *Client) UnregisterStateChange(ctx context.Context, slot telephony.SlotID, mask telephony.Mask) error {
	return c.Call(ctx, MethodUnregister, UnregisterRequest{Slot: slot, Mask: mask}, nil)
}

// Update publishes v on slot.
func (c *Client) Update(ctx context.Context, slot telephony.SlotID, v telephony.Value) error {
	raw, err := telephony.EncodeValue(v)
	if err != nil {
		return err
	}
	return c.Call(ctx, UpdateMethod(v.Kind()), UpdateRequest{Slot: slot, Value: raw}, nil)
}

func (c *Client) Dump(ctx context.Context) (registry.Dump, error) {
	var d registry.Dump
	err := c.Call(ctx, MethodDump, nil, &d)
	return d, err
}

// Call issues method with req and decodes the reply payload into resp when
// resp is non-nil. A non-success reply is returned as the matching
// telephony sentinel error.
func (c *Client) Call(ctx context.Context, method string, req, resp any) error {
	var payload json.RawMessage
	if req != nil {
		raw, err := json.Marshal(req)
		if err != nil {
			return err
		}
		payload = raw
	}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, telephony.ErrServiceUnavailable)
	}
	c.seq++
	seq := c.seq
	ch := make(chan Frame, 1)
	c.pending[seq] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
	}()

	if err := c.writeFrame(Frame{Seq: seq, Type: FrameCall, Method: method, Payload: payload}); err != nil {
		return fmt.Errorf("%s: %w: %v", method, telephony.ErrServiceUnavailable, err)
	}

	select {
	case reply := <-ch:
		if reply.Code != telephony.CodeSuccess {
			return fmt.Errorf("%s: %w (%s)", method, reply.Code.Err(), reply.Error)
		}
		if resp != nil && len(reply.Payload) > 0 {
			if err := json.Unmarshal(reply.Payload, resp); err != nil {
				return fmt.Errorf("%s: decode reply: %w", method, err)
			}
		}
		return nil
	case <-c.done:
		return fmt.Errorf("%s: %w", method, telephony.ErrServiceUnavailable)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) writeFrame(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	pongWait := 2 * c.opts.PingInterval
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	c.ws.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch f.Type {
		case FrameReply:
			c.mu.Lock()
			ch, ok := c.pending[f.Seq]
			c.mu.Unlock()
			if ok {
				ch <- f
			}
		case FrameNotify:
			var p NotifyPayload
			if err := json.Unmarshal(f.Payload, &p); err != nil {
				c.log.Warn("bad notification", logger.Error(err))
				continue
			}
			n, err := p.decode()
			if err != nil {
				c.log.Warn("bad notification", logger.Kind(p.Kind), logger.Error(err))
				continue
			}
			c.enqueue(n)
		}
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
		close(c.done)
	}
	c.mu.Unlock()
	c.ws.Close()
}

// enqueue never blocks, so a handler that issues calls of its own cannot
// stall the read loop that delivers their replies.
func (c *Client) enqueue(n telephony.Notification) {
	c.notifyMu.Lock()
	c.notifyQ = append(c.notifyQ, n)
	c.notifyMu.Unlock()
	select {
	case c.notifyCh <- struct{}{}:
	default:
	}
}

func (c *Client) notifyLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.notifyCh:
		case <-c.done:
			return
		}
		for {
			c.notifyMu.Lock()
			if len(c.notifyQ) == 0 {
				c.notifyMu.Unlock()
				break
			}
			n := c.notifyQ[0]
			c.notifyQ = c.notifyQ[1:]
			h := c.opts.Handler
			c.notifyMu.Unlock()
			if h != nil {
				h(n)
			}
		}
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
