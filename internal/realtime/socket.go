// Package realtime keeps the event socket to the backend open and applies
// the events it delivers to the view-state containers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/metrics"
	"github.com/matheus3301/chatline/internal/model"
)

// ErrNotConnected is returned by Emit while the socket is down.
var ErrNotConnected = errors.New("realtime: not connected")

// State is the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// StateChange is published on bus.TopicSocketState.
type StateChange struct {
	State   State
	Attempt int
	Delay   time.Duration
}

// Envelope is the frame exchanged on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// TokenSource supplies the bearer token used to authenticate the socket.
type TokenSource interface {
	Get() string
}

// Config tunes the connection.
type Config struct {
	URL         string
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int // 0 retries forever
	Heartbeat   time.Duration
	PingTimeout time.Duration
}

func (c *Config) defaults() {
	if c.BaseDelay == 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Heartbeat == 0 {
		c.Heartbeat = 25 * time.Second
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 10 * time.Second
	}
}

// Socket is a self-healing WebSocket client. Run owns the connection;
// Emit may be called from any goroutine.
type Socket struct {
	cfg     Config
	tokens  TokenSource
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger

	events chan model.Event
	kick   chan struct{}

	mu    sync.Mutex
	conn  *websocket.Conn
	state State
}

// NewSocket creates a socket. Nothing is dialed until Run.
func NewSocket(cfg Config, tokens TokenSource, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Socket {
	cfg.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Socket{
		cfg:     cfg,
		tokens:  tokens,
		bus:     b,
		metrics: m,
		logger:  logger,
		events:  make(chan model.Event, 256),
		kick:    make(chan struct{}, 1),
		state:   StateDisconnected,
	}
}

// Events delivers decoded server events in arrival order.
func (s *Socket) Events() <-chan model.Event {
	return s.events
}

// State returns the connection state.
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Kick drops the current connection and dials again at once with the
// current token. Call it after the token changes.
func (s *Socket) Kick() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	select {
	case s.kick <- struct{}{}:
	default:
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "reconnect")
	}
}

// Run connects and keeps reconnecting until ctx ends or the attempt limit
// is reached. Without a token it waits for Kick.
func (s *Socket) Run(ctx context.Context) error {
	bo := newBackoff(s.cfg.BaseDelay, s.cfg.MaxDelay, s.cfg.MaxAttempts)
	defer s.setState(StateDisconnected, 0, 0)

	for {
		tok := s.tokens.Get()
		if tok == "" {
			s.setState(StateDisconnected, 0, 0)
			bo.reset()
			if err := s.waitKick(ctx, 0); err != nil {
				return err
			}
			continue
		}

		err := s.session(ctx, tok, bo)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.drainKick() {
			bo.reset()
			continue
		}

		var unauthorized *dialStatusError
		if errors.As(err, &unauthorized) && unauthorized.status == http.StatusUnauthorized {
			s.logger.Warn("socket rejected token, waiting for a new one")
			s.setState(StateDisconnected, 0, 0)
			if err := s.waitKick(ctx, 0); err != nil {
				return err
			}
			bo.reset()
			continue
		}

		if bo.exhausted() {
			return fmt.Errorf("realtime: giving up after %d attempts: %w", bo.attempt, err)
		}
		delay := bo.next(time.Now())
		s.logger.Info("socket reconnecting",
			zap.Int("attempt", bo.attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		s.setState(StateReconnecting, bo.attempt, delay)
		if err := s.waitKick(ctx, delay); err != nil {
			return err
		}
	}
}

// session dials and reads until the connection fails.
func (s *Socket) session(ctx context.Context, tok string, bo *backoff) error {
	s.setState(StateConnecting, 0, 0)
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, resp, err := websocket.Dial(dialCtx, s.cfg.URL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Bearer " + tok}},
	})
	cancel()
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return &dialStatusError{status: resp.StatusCode, err: err}
		}
		return fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(4 << 20)

	connCtx, stop := context.WithCancel(ctx)
	defer stop()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		s.metrics.SocketConnected(false)
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	bo.connected(time.Now())
	s.metrics.SocketConnected(true)
	s.setState(StateConnected, 0, 0)
	s.logger.Info("socket connected", zap.String("url", s.cfg.URL))

	go s.heartbeat(connCtx, conn)
	return s.readLoop(connCtx, conn)
}

func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		ev, err := model.DecodeEvent(env.Event, env.Data)
		if err != nil {
			s.logger.Debug("ignoring event", zap.String("event", env.Event), zap.Error(err))
			continue
		}
		s.metrics.RealtimeEvent(env.Event)
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Socket) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.cfg.PingTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil && ctx.Err() == nil {
				s.logger.Warn("heartbeat failed", zap.Error(err))
				_ = conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}

// Emit sends ev to the server, which relays it to the other subscribers of
// the same conversation.
func (s *Socket) Emit(ctx context.Context, ev model.Event) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	name, data, err := model.EncodeEvent(ev)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Event: name, Data: data})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}

func (s *Socket) setState(st State, attempt int, delay time.Duration) {
	s.mu.Lock()
	changed := s.state != st || st == StateReconnecting
	s.state = st
	s.mu.Unlock()
	if changed {
		s.bus.Emit(bus.TopicSocketState, StateChange{State: st, Attempt: attempt, Delay: delay})
	}
}

// waitKick sleeps for d, or until Kick when d is 0.
func (s *Socket) waitKick(ctx context.Context, d time.Duration) error {
	var timer <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timer = t.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.kick:
		return nil
	case <-timer:
		return nil
	}
}

func (s *Socket) drainKick() bool {
	select {
	case <-s.kick:
		return true
	default:
		return false
	}
}

type dialStatusError struct {
	status int
	err    error
}

func (e *dialStatusError) Error() string {
	return fmt.Sprintf("dial: status %d: %v", e.status, e.err)
}

func (e *dialStatusError) Unwrap() error { return e.err }
