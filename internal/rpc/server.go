package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/logger"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/registry"
	"github.com/eclipse-oniro-mirrors/telephony-state-registry-sub000/internal/telephony"
)

// ErrTooManyConnections is returned when the connection limit is reached.
var ErrTooManyConnections = errors.New("too many connections")

var errConnClosed = errors.New("connection closed")

type ServerOptions struct {
	// Resolve derives caller identities. Defaults to PeerIdentity.
	Resolve        IdentityResolver
	MaxConnections int
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	Logger         *slog.Logger
}

type handler func(ctx context.Context, c *conn, payload json.RawMessage) (any, error)

// Server is the stub side of the protocol: it decodes calls, invokes the
// broker on behalf of the connection's identity and replies.
type Server struct {
	broker   *registry.Broker
	opts     ServerOptions
	methods  map[string]handler
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu    sync.Mutex
	conns map[*conn]struct{}
}

type netConnKey struct{}

func NewServer(b *registry.Broker, opts ServerOptions) *Server {
	if opts.Resolve == nil {
		opts.Resolve = PeerIdentity
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 128
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	s := &Server{
		broker: b,
		opts:   opts,
		log:    logger.OrDiscard(opts.Logger),
		conns:  make(map[*conn]struct{}),
	}
	s.methods = map[string]handler{
		MethodRegister:   s.handleRegister,
		MethodUnregister: s.handleUnregister,
		MethodDump:       s.handleDump,
	}
	for _, k := range telephony.AllKinds {
		s.methods[UpdateMethod(k)] = s.handleUpdate(k)
	}
	return s
}

// ConnContext stores the accepted net.Conn so ServeHTTP can resolve the
// peer identity. Install it as http.Server.ConnContext.
func (s *Server) ConnContext(ctx context.Context, c net.Conn) context.Context {
	return context.WithValue(ctx, netConnKey{}, c)
}

// ListenAndServe serves on a unix socket at path until ctx is cancelled.
// A stale socket file from a previous run is removed first.
func (s *Server) ListenAndServe(ctx context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	if err := os.Chmod(path, 0o666); err != nil {
		ln.Close()
		return err
	}
	s.log.Info("rpc server listening", slog.String("socket", path))
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:     s,
		ConnContext: s.ConnContext,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.WriteTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.closeAll()
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.ConnCount() >= s.opts.MaxConnections {
		s.log.Warn("rejecting connection", logger.Error(ErrTooManyConnections))
		http.Error(w, ErrTooManyConnections.Error(), http.StatusServiceUnavailable)
		return
	}

	netConn, _ := r.Context().Value(netConnKey{}).(net.Conn)
	id, err := s.opts.Resolve(r.Context(), netConn)
	if err != nil {
		s.log.Warn("cannot identify peer", logger.Error(err))
		http.Error(w, "cannot identify peer", http.StatusForbidden)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", logger.Error(err))
		return
	}

	c := newConn(s, ws, id)
	if !s.add(c) {
		ws.Close()
		return
	}
	s.log.Info("client connected", logger.ID("conn", c.id), logger.Identity(id))
	go c.writePump()
	go c.readLoop()
}

// ConnCount returns the number of live connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) add(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) >= s.opts.MaxConnections {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) remove(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

func (s *Server) handleRegister(_ context.Context, c *conn, payload json.RawMessage) (any, error) {
	var req RegisterRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", telephony.ErrInvalidArgument, err)
	}
	sub := registry.Subscription{
		Slot:       req.Slot,
		Mask:       req.Mask,
		BundleName: req.BundleName,
		NotifyNow:  req.NotifyNow,
	}
	return nil, s.broker.Register(c.identity, sub, c)
}

func (s *Server) handleUnregister(_ context.Context, c *conn, payload json.RawMessage) (any, error) {
	var req UnregisterRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", telephony.ErrInvalidArgument, err)
	}
	return nil, s.broker.Unregister(c.identity, req.Slot, req.Mask, c)
}

func (s *Server) handleDump(_ context.Context, c *conn, _ json.RawMessage) (any, error) {
	return s.broker.Dump(c.identity)
}

func (s *Server) handleUpdate(kind telephony.EventKind) handler {
	return func(ctx context.Context, c *conn, payload json.RawMessage) (any, error) {
		var req UpdateRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", telephony.ErrInvalidArgument, err)
		}
		v, err := telephony.DecodeValue(kind, req.Value)
		if err != nil {
			return nil, err
		}
		return nil, s.broker.Update(ctx, c.identity, req.Slot, v)
	}
}

// conn is one subscriber connection. It is also the broker Observer for
// every registration made over it.
type conn struct {
	id       string
	srv      *Server
	ws       *websocket.Conn
	identity telephony.Identity
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func newConn(s *Server, ws *websocket.Conn, id telephony.Identity) *conn {
	return &conn{
		id:       uuid.NewString(),
		srv:      s,
		ws:       ws,
		identity: id,
		send:     make(chan []byte, s.opts.SendBuffer),
		done:     make(chan struct{}),
	}
}

// Notify implements registry.Observer. It blocks while the send buffer is
// full, which backs up this connection's outbox only.
func (c *conn) Notify(ctx context.Context, n telephony.Notification) error {
	p, err := encodeNotification(n)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.write(ctx, Frame{Type: FrameNotify, Payload: raw})
}

func (c *conn) write(ctx context.Context, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *conn) readLoop() {
	defer c.close()

	pongWait := 2 * c.srv.opts.PingInterval
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil || f.Type != FrameCall {
			c.srv.log.Debug("ignoring malformed frame", logger.ID("conn", c.id), logger.Error(err))
			continue
		}
		reply := c.dispatch(ctx, f)
		if err := c.write(ctx, reply); err != nil {
			return
		}
	}
}

func (c *conn) dispatch(ctx context.Context, f Frame) Frame {
	reply := Frame{Seq: f.Seq, Type: FrameReply}
	h, ok := c.srv.methods[f.Method]
	if !ok {
		err := fmt.Errorf("unknown method %q: %w", f.Method, telephony.ErrInvalidArgument)
		reply.Code, reply.Error = telephony.CodeOf(err), err.Error()
		return reply
	}
	result, err := h(ctx, c, f.Payload)
	if err != nil {
		reply.Code, reply.Error = telephony.CodeOf(err), err.Error()
		c.srv.log.Debug("call failed", logger.ID("conn", c.id), slog.String("method", f.Method), logger.Error(err))
		return reply
	}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			reply.Code, reply.Error = telephony.CodeInternal, err.Error()
			return reply
		}
		reply.Payload = raw
	}
	return reply
}

func (c *conn) writePump() {
	ticker := time.NewTicker(c.srv.opts.PingInterval)
	defer ticker.Stop()
	defer c.close()
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// close tears the connection down once. Every registration delivering to it
// is dropped from the broker.
func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.Close()
		n := c.srv.broker.RemoveObserver(c)
		c.srv.remove(c)
		c.srv.log.Info("client disconnected", logger.ID("conn", c.id), logger.Identity(c.identity), slog.Int("records", n))
	})
}
