// server.go — Transport (§4.4): WebSocket server with a chi-routed HTTP
// surface, per-connection inbound state machine, and outbound sendCommand
// correlation. Grounded on the pack's gorilla/websocket + go-chi stack
// (r3e-network-service_layer), using internal/util.SafeGo's panic-recovering
// goroutine launcher for every per-connection read pump.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/devradar/devradar/internal/metrics"
	"github.com/devradar/devradar/internal/types"
	"github.com/devradar/devradar/internal/util"
)

// EventSink is the subset of the Event Store the Transport feeds inbound
// events and session lifecycle into.
type EventSink interface {
	AddEvent(ctx context.Context, e types.RuntimeEvent)
	RegisterSession(info types.SessionInfo)
	MarkDisconnected(sessionID string)
}

// DisconnectCallback is invoked on client close, after the session has been
// marked disconnected (§4.4 "Client close"). Errors are swallowed by Server.
type DisconnectCallback func(sessionID string) error

// Config configures Server's bind and command-correlation defaults.
type Config struct {
	Host              string
	Port              int
	MaxBindRetries    int
	BindRetryDelay    time.Duration
	CommandTimeout    time.Duration
	BreakerMaxFails   uint32
	BreakerOpenPeriod time.Duration
}

// DefaultConfig returns the §6.4 defaults (port 9090, host 127.0.0.1,
// maxRetries 5, retryDelayMs 1000), plus devradar's additive resiliency
// defaults for the command breaker.
func DefaultConfig() Config {
	return Config{
		Host:              "127.0.0.1",
		Port:              9090,
		MaxBindRetries:    5,
		BindRetryDelay:    time.Second,
		CommandTimeout:    10 * time.Second,
		BreakerMaxFails:   5,
		BreakerOpenPeriod: 30 * time.Second,
	}
}

// Server is the WebSocket + HTTP transport. One Server serves one daemon
// instance; it owns no cross-process state.
type Server struct {
	cfg    Config
	sink   EventSink
	logger *zap.Logger
	upg    websocket.Upgrader

	mu          sync.Mutex
	conns       map[string]*connection // sessionID -> connection
	pending     map[string]*pendingCommands
	breakers    map[string]*gobreaker.CircuitBreaker
	disconnects []DisconnectCallback

	httpServer *http.Server
}

// New constructs a Server. sink receives every ingested event and session
// lifecycle transition.
func New(cfg Config, sink EventSink, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
		upg:      websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		conns:    make(map[string]*connection),
		pending:  make(map[string]*pendingCommands),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// OnDisconnect registers cb to run on every client close, after the session
// is marked disconnected. cb's error is logged and swallowed (§4.4).
func (s *Server) OnDisconnect(cb DisconnectCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects = append(s.disconnects, cb)
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start binds the HTTP listener, retrying a bind-conflict up to
// cfg.MaxBindRetries times, paced through an x/time/rate limiter rather than
// a bare sleep loop (§4.4, §7 "Port in use"; same observable delay).
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	limiter := rate.NewLimiter(rate.Every(s.cfg.BindRetryDelay), 1)
	// Spend the initial burst token so the first retry also waits a full delay.
	limiter.Allow()

	var listener net.Listener
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxBindRetries; attempt++ {
		if attempt > 0 {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		l, err := net.Listen("tcp", addr)
		if err == nil {
			listener = l
			break
		}
		lastErr = err
		s.logger.Warn("bind failed, retrying", zap.String("addr", addr), zap.Int("attempt", attempt), zap.Error(err))
	}
	if listener == nil {
		return fmt.Errorf("bind %s after %d retries: %w", addr, s.cfg.MaxBindRetries, lastErr)
	}

	s.httpServer = &http.Server{Handler: s.router()}
	util.SafeGo(func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server exited", zap.Error(err))
		}
	})
	s.logger.Info("transport listening", zap.String("addr", addr))
	return nil
}

// Stop gracefully shuts the HTTP/WebSocket listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upg.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := newConnection(ws, s.logger)
	util.SafeGo(func() { s.readPump(r.Context(), conn) })
}

// readPump owns one connection's inbound state machine (§4.4). It runs until
// the socket closes; writes to this connection are never issued from here
// directly except where explicitly serialized through conn.send.
func (s *Server) readPump(ctx context.Context, conn *connection) {
	defer s.handleClose(conn)
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Debug("malformed inbound envelope, dropping", zap.Error(err))
			continue
		}
		s.dispatch(ctx, conn, env)
	}
}

func (s *Server) dispatch(ctx context.Context, conn *connection, env types.Envelope) {
	switch env.Type {
	case types.EnvelopeHandshake:
		s.handleHandshake(conn, env)
	case types.EnvelopeEvent:
		s.handleEventBatch(ctx, conn, env)
	case types.EnvelopeHeartbeat:
		// no-op (§4.4).
	case types.EnvelopeCommandResponse:
		s.handleCommandResponse(conn, env)
	default:
		s.logger.Debug("unknown envelope type, dropping", zap.String("type", string(env.Type)))
	}
}

func (s *Server) handleHandshake(conn *connection, env types.Envelope) {
	var hs types.HandshakePayload
	if err := json.Unmarshal(env.Payload, &hs); err != nil {
		s.logger.Debug("malformed handshake payload, dropping", zap.Error(err))
		return
	}
	sessionID := hs.SessionID
	if sessionID == "" {
		sessionID = env.SessionID
	}
	conn.register(sessionID, hs.AppName)

	s.mu.Lock()
	s.conns[sessionID] = conn
	if _, ok := s.pending[sessionID]; !ok {
		s.pending[sessionID] = newPendingCommands()
	}
	s.mu.Unlock()

	s.sink.RegisterSession(types.SessionInfo{
		SessionID:   sessionID,
		AppName:     hs.AppName,
		SDKVersion:  hs.SDKVersion,
		ConnectedAt: nowMillis(),
		IsConnected: true,
	})
	metrics.SessionsConnected.Inc()
}

func (s *Server) handleEventBatch(ctx context.Context, conn *connection, env types.Envelope) {
	sessionID, ok := conn.registered()
	if !ok {
		s.logger.Debug("event batch before handshake, dropping")
		return
	}
	var batch types.EventBatchPayload
	if err := json.Unmarshal(env.Payload, &batch); err != nil {
		s.logger.Debug("malformed event batch, dropping", zap.Error(err))
		return
	}
	for _, e := range batch.Events {
		if e.SessionID == "" {
			e.SessionID = sessionID
		}
		s.sink.AddEvent(ctx, e)
	}
}

func (s *Server) handleCommandResponse(conn *connection, env types.Envelope) {
	sessionID, ok := conn.registered()
	if !ok {
		return
	}
	var resp types.CommandResponsePayload
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		s.logger.Debug("malformed command_response, dropping", zap.Error(err))
		return
	}
	s.mu.Lock()
	pc := s.pending[sessionID]
	s.mu.Unlock()
	if pc == nil {
		return
	}
	pc.resolve(resp.RequestID, resp.Result)
}

func (s *Server) handleClose(conn *connection) {
	sessionID, ok := conn.registered()
	if !ok {
		return
	}
	s.sink.MarkDisconnected(sessionID)
	metrics.SessionsConnected.Dec()

	s.mu.Lock()
	if s.conns[sessionID] == conn {
		delete(s.conns, sessionID)
	}
	callbacks := make([]DisconnectCallback, len(s.disconnects))
	copy(callbacks, s.disconnects)
	s.mu.Unlock()

	for _, cb := range callbacks {
		if err := cb(sessionID); err != nil {
			s.logger.Warn("disconnect callback failed", zap.String("sessionId", sessionID), zap.Error(err))
		}
	}
}

var errNoActiveConnection = errors.New("no active connection")

// ErrNoActiveConnection is returned by SendCommand when sessionID has no
// open connection.
func ErrNoActiveConnection() error { return errNoActiveConnection }

func (s *Server) breakerFor(sessionID string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[sessionID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sendCommand:" + sessionID,
		MaxRequests: 1,
		Timeout:     s.cfg.BreakerOpenPeriod,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.cfg.BreakerMaxFails
		},
	})
	s.breakers[sessionID] = b
	return b
}

// SendCommand implements §4.4 "Outbound commands": it looks up an open
// connection for sessionID, registers a correlated waiter, sends the framed
// command, and blocks until the matching command_response arrives, the
// waiter times out, or the send itself fails. A per-session circuit breaker
// wraps the whole attempt: after BreakerMaxFails consecutive failures it
// fails fast without registering a doomed waiter, for BreakerOpenPeriod.
func (s *Server) SendCommand(ctx context.Context, sessionID, command, requestID string, params json.RawMessage) (json.RawMessage, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	breaker := s.breakerFor(sessionID)
	start := time.Now()

	result, err := breaker.Execute(func() (interface{}, error) {
		return s.sendCommandOnce(ctx, sessionID, command, requestID, params)
	})

	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "circuit_open"
	case errors.Is(err, errNoActiveConnection):
		outcome = "no_connection"
	case err != nil:
		outcome = "timeout"
	}
	metrics.CommandRoundtripSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("circuit open for session %s", sessionID)
	}
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (s *Server) sendCommandOnce(ctx context.Context, sessionID, command, requestID string, params json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	conn, ok := s.conns[sessionID]
	pc := s.pending[sessionID]
	s.mu.Unlock()
	if !ok || conn == nil {
		return nil, errNoActiveConnection
	}
	if pc == nil {
		pc = newPendingCommands()
		s.mu.Lock()
		s.pending[sessionID] = pc
		s.mu.Unlock()
	}

	timeout := s.cfg.CommandTimeout
	waiter := pc.register(requestID, timeout)

	payload, err := json.Marshal(types.CommandPayload{Command: command, RequestID: requestID, Params: params})
	if err != nil {
		pc.unregister(requestID)
		return nil, err
	}
	env := types.Envelope{Type: types.EnvelopeCommand, Payload: payload, Timestamp: nowMillis(), SessionID: sessionID}
	if err := conn.send(env); err != nil {
		pc.fail(requestID, fmt.Errorf("send command: %w", err))
	}

	select {
	case result := <-waiter.resultCh:
		return result, nil
	case err := <-waiter.errCh:
		return nil, err
	case <-ctx.Done():
		pc.unregister(requestID)
		return nil, ctx.Err()
	}
}
