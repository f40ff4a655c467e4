package volumio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// errServerClosed marks a close initiated by the server side.
var errServerClosed = errors.New("volumio: server closed the session")

// dial establishes one transport connection and completes the protocol
// handshake: the server first sends an open packet carrying the keepalive
// parameters, then confirms the session with a connect packet. On success
// the receive and keepalive loops are started for the new connection.
func (s *Session) dial(ctx context.Context) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", s.url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err := s.awaitHandshake(ctx, conn); err != nil {
		conn.Close()
		return err
	}

	s.connMu.Lock()
	if s.closed {
		s.connMu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	s.conn = conn
	s.connected = true
	s.connMu.Unlock()

	go s.readLoop(conn)
	go s.pingLoop(conn)

	s.getLogger().Info("volumio session established",
		"host", s.cfg.Host,
		"port", s.cfg.Port,
		"ping_interval", s.pingInterval,
	)
	return nil
}

// awaitHandshake reads frames until both handshake packets have arrived.
func (s *Session) awaitHandshake(ctx context.Context, conn *websocket.Conn) error {
	deadline := time.Now().Add(defaultPingTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	//nolint:errcheck // Best-effort deadline; read error caught below
	conn.SetReadDeadline(deadline)

	var opened, confirmed bool
	for !opened || !confirmed {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("handshake read: %w", err)
		}

		p, err := decodePacket(string(data))
		if err != nil {
			return fmt.Errorf("handshake: %w", err)
		}

		switch {
		case p.engineType == engineOpen:
			opened = true
			if p.handshake.PingInterval > 0 {
				s.pingInterval = time.Duration(p.handshake.PingInterval) * time.Millisecond
			}
			if p.handshake.PingTimeout > 0 {
				s.pingTimeout = time.Duration(p.handshake.PingTimeout) * time.Millisecond
			}
		case p.engineType == engineMessage && p.socketType == socketConnect:
			confirmed = true
		case p.engineType == engineClose:
			return errServerClosed
		default:
			// Servers may interleave other traffic during the handshake.
		}
	}

	return nil
}

// readLoop receives frames until the connection dies.
// Every received frame resets the read deadline; a silent server is
// treated as a lost connection once the keepalive window expires.
func (s *Session) readLoop(conn *websocket.Conn) {
	resetDeadline := func() {
		//nolint:errcheck // Best-effort deadline; read error caught below
		conn.SetReadDeadline(time.Now().Add(s.pingInterval + s.pingTimeout))
	}
	resetDeadline()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(conn, err)
			return
		}
		resetDeadline()

		p, err := decodePacket(string(data))
		if err != nil {
			s.getLogger().Warn("discarding malformed frame", "error", err)
			continue
		}

		if done := s.handlePacket(conn, p); done {
			return
		}
	}
}

// handlePacket dispatches one decoded frame.
// It returns true when the connection is finished and readLoop must exit.
func (s *Session) handlePacket(conn *websocket.Conn, p packet) bool {
	switch p.engineType {
	case enginePong:
		// Keepalive answer; the read deadline was already reset.

	case enginePing:
		// Server-initiated ping. Answer to keep the session alive.
		if err := s.writeFrame(conn, string(enginePong)); err != nil {
			s.handleDisconnect(conn, err)
			return true
		}

	case engineClose:
		s.handleDisconnect(conn, errServerClosed)
		return true

	case engineMessage:
		switch p.socketType {
		case socketEvent:
			s.handleEvent(p)
		case socketAck:
			s.handleAck(p)
		case socketDisconnect:
			s.handleDisconnect(conn, errServerClosed)
			return true
		}
	}

	return false
}

// handleEvent processes one server broadcast.
// pushState replaces the whole player snapshot; everything else is noise.
func (s *Session) handleEvent(p packet) {
	if p.event != "pushState" || len(p.args) == 0 {
		s.getLogger().Debug("ignoring server event", "event", p.event)
		return
	}

	state, ok := stateFromArg(p.args[0])
	if !ok {
		s.getLogger().Warn("discarding unreadable pushState payload")
		return
	}

	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()

	s.getLogger().Debug("player state updated",
		"status", state.Status,
		"title", state.Title,
		"volume", state.Volume,
	)

	s.callbackMu.RLock()
	callback := s.onState
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(state)
	}
}

// handleAck fires the pending callback for an acknowledgement reply.
func (s *Session) handleAck(p packet) {
	if p.ackID < 0 {
		return
	}

	s.acksMu.Lock()
	ack, ok := s.acks[p.ackID]
	delete(s.acks, p.ackID)
	s.acksMu.Unlock()

	if !ok {
		s.getLogger().Debug("acknowledgement for unknown id", "id", p.ackID)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.getLogger().Error("acknowledgement callback panic recovered", "id", p.ackID, "panic", r)
		}
	}()
	ack(p.args)
}

// pingLoop sends a keepalive probe every pingInterval.
// A write failure is left for readLoop to notice; the loop just exits.
func (s *Session) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.writeFrame(conn, string(enginePing)); err != nil {
				return
			}
		}
	}
}

// handleDisconnect marks the session down and schedules a redial.
// Only the goroutine that owns the current connection transitions the
// state; stale connections from an earlier dial are ignored.
func (s *Session) handleDisconnect(conn *websocket.Conn, err error) {
	s.connMu.Lock()
	if s.closed || s.conn != conn {
		s.connMu.Unlock()
		return
	}
	s.connected = false
	s.conn = nil
	s.connMu.Unlock()

	conn.Close()
	s.clearAcks()

	s.getLogger().Warn("volumio session lost", "error", err)

	s.callbackMu.RLock()
	callback := s.onDisconnect
	s.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}

	go s.reconnectLoop()
}

// reconnectLoop redials with capped exponential backoff until the session
// is re-established, the session is closed, or the configured attempt
// budget is exhausted.
func (s *Session) reconnectLoop() {
	delay := time.Duration(s.cfg.Reconnect.InitialDelay) * time.Second
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := time.Duration(s.cfg.Reconnect.MaxDelay) * time.Second
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}

	attempts := 0
	for {
		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		attempts++
		ctx, cancel := context.WithTimeout(context.Background(), s.connectTimeout())
		err := s.dial(ctx)
		cancel()

		if err == nil {
			s.getLogger().Info("volumio session re-established", "attempts", attempts)

			s.callbackMu.RLock()
			callback := s.onConnect
			s.callbackMu.RUnlock()
			if callback != nil {
				callback()
			}
			return
		}
		if errors.Is(err, ErrSessionClosed) {
			return
		}

		s.getLogger().Warn("reconnect attempt failed",
			"attempt", attempts,
			"next_retry", delay,
			"error", err,
		)

		if limit := s.cfg.Reconnect.MaxAttempts; limit > 0 && attempts >= limit {
			s.getLogger().Error("reconnect attempts exhausted", "attempts", attempts)
			return
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// connectTimeout returns the configured dial timeout with a floor.
func (s *Session) connectTimeout() time.Duration {
	t := time.Duration(s.cfg.ConnectTimeout) * time.Second
	if t <= 0 {
		t = 10 * time.Second
	}
	return t
}
