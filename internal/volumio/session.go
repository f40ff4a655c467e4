package volumio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edmw/volumio-hid/internal/command"
	"github.com/edmw/volumio-hid/internal/infrastructure/config"
)

// Keepalive defaults used until the server handshake supplies its own.
const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 60 * time.Second

	// writeTimeout bounds every single frame write.
	writeTimeout = 10 * time.Second
)

// Session is a persistent Socket.IO session to a Volumio server.
//
// It maintains the connection over a WebSocket transport, answers the
// keepalive protocol, tracks the player state from pushState broadcasts,
// and redials with capped exponential backoff when the connection drops.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Commands emitted while the session is down are dropped, never queued.
type Session struct {
	cfg config.VolumioConfig
	url string

	// conn and connected track the active transport.
	conn      *websocket.Conn
	connected bool
	closed    bool
	connMu    sync.RWMutex

	// writeMu serializes frame writes so emits and keepalives interleave
	// without corrupting the stream. Emit order is preserved.
	writeMu sync.Mutex

	// pingInterval and pingTimeout come from the server handshake.
	pingInterval time.Duration
	pingTimeout  time.Duration

	// acks maps pending acknowledgement ids to their callbacks.
	acks   map[int64]command.AckFunc
	acksMu sync.Mutex
	nextID atomic.Int64

	// state is the latest player snapshot.
	state   State
	stateMu sync.RWMutex

	// Callbacks for session events (optional, set via SetOn*).
	onConnect    func()
	onDisconnect func(err error)
	onState      func(State)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex

	// done is closed exactly once when the session is shut down.
	done      chan struct{}
	closeOnce sync.Once
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is set.
type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Debug(string, ...any) {}

// Connect establishes a session to the Volumio server.
//
// It dials the WebSocket endpoint, completes the protocol handshake and
// starts the keepalive and receive loops. The initial connection is
// synchronous: if the server cannot be reached before ctx expires the
// daemon should treat that as a startup failure. Reconnection after a
// later drop happens in the background.
//
// Parameters:
//   - ctx: Bounds the initial connection attempt
//   - cfg: Volumio server settings from config.yaml
//
// Returns:
//   - *Session: Connected session ready for use
//   - error: Wraps ErrConnectionFailed if the handshake does not complete
func Connect(ctx context.Context, cfg config.VolumioConfig) (*Session, error) {
	s := &Session{
		cfg:          cfg,
		url:          fmt.Sprintf("ws://%s:%d/socket.io/?EIO=3&transport=websocket", cfg.Host, cfg.Port),
		pingInterval: defaultPingInterval,
		pingTimeout:  defaultPingTimeout,
		acks:         make(map[int64]command.AckFunc),
		logger:       noopLogger{},
		done:         make(chan struct{}),
	}

	if err := s.dial(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return s, nil
}

// Emit sends one event to the server.
//
// The payload, when non-nil, is appended to the event frame as JSON. When
// ack is non-nil an acknowledgement is requested and the callback fires
// once with the server's reply arguments.
//
// While the session is down the event is dropped with a warning and
// ErrNotConnected is returned; events are never queued for later delivery.
func (s *Session) Emit(event string, payload any, ack command.AckFunc) error {
	s.connMu.RLock()
	closed, connected := s.closed, s.connected
	conn := s.conn
	s.connMu.RUnlock()

	if closed {
		return ErrSessionClosed
	}
	if !connected {
		s.getLogger().Warn("dropping command, session not connected", "event", event)
		return ErrNotConnected
	}

	ackID := int64(-1)
	if ack != nil {
		ackID = s.nextID.Add(1)
		s.acksMu.Lock()
		s.acks[ackID] = ack
		s.acksMu.Unlock()
	}

	frame, err := encodeEvent(ackID, event, payload)
	if err != nil {
		s.forgetAck(ackID)
		return err
	}

	if err := s.writeFrame(conn, frame); err != nil {
		s.forgetAck(ackID)
		return fmt.Errorf("emitting %s: %w", event, err)
	}

	s.getLogger().Debug("emitted command", "event", event)
	return nil
}

// State returns the latest player snapshot.
// The zero State is returned before the first pushState arrives.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Muted reports whether the last player snapshot has the output muted.
// Reads the same snapshot as State; false until the first pushState.
func (s *Session) Muted() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state.Mute
}

// IsConnected returns the current connection state.
func (s *Session) IsConnected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connected
}

// HealthCheck verifies the session is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Session) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("volumio health check: %w", ctx.Err())
	default:
	}

	if !s.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// Close shuts the session down.
//
// Pending acknowledgements are discarded, the transport is closed and
// background loops unwind. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.connMu.Lock()
		s.closed = true
		s.connected = false
		conn := s.conn
		s.conn = nil
		s.connMu.Unlock()

		close(s.done)
		s.clearAcks()

		if conn != nil {
			// Best-effort protocol goodbye before tearing the socket down.
			s.writeFrame(conn, string(engineClose)) //nolint:errcheck // Connection is going away regardless
			conn.Close()
		}
	})

	return nil
}

// SetOnConnect sets a callback invoked when a session is established.
// This fires on reconnects, not on the initial synchronous connect.
func (s *Session) SetOnConnect(callback func()) {
	s.callbackMu.Lock()
	s.onConnect = callback
	s.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the session drops.
// The error parameter describes why the connection was lost.
func (s *Session) SetOnDisconnect(callback func(err error)) {
	s.callbackMu.Lock()
	s.onDisconnect = callback
	s.callbackMu.Unlock()
}

// SetOnState sets a callback invoked with every new player snapshot.
func (s *Session) SetOnState(callback func(State)) {
	s.callbackMu.Lock()
	s.onState = callback
	s.callbackMu.Unlock()
}

// SetLogger sets a logger for session events.
// If not set, the session is silent.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// getLogger returns the current logger.
func (s *Session) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// writeFrame writes one text frame with a bounded deadline.
func (s *Session) writeFrame(conn *websocket.Conn, frame string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	//nolint:errcheck // Best-effort deadline; write error caught below
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// forgetAck removes a pending acknowledgement after a failed emit.
func (s *Session) forgetAck(ackID int64) {
	if ackID < 0 {
		return
	}
	s.acksMu.Lock()
	delete(s.acks, ackID)
	s.acksMu.Unlock()
}

// clearAcks discards all pending acknowledgements.
// Called on disconnect: replies for a dead connection never arrive.
func (s *Session) clearAcks() {
	s.acksMu.Lock()
	s.acks = make(map[int64]command.AckFunc)
	s.acksMu.Unlock()
}
