package volumio

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edmw/volumio-hid/internal/infrastructure/config"
)

// fakeVolumio is a minimal Socket.IO server: it completes the handshake
// for every connection, answers keepalive probes, and hands received
// frames to the test.
type fakeVolumio struct {
	t     *testing.T
	srv   *httptest.Server
	conns chan *fakeConn
}

type fakeConn struct {
	conn    *websocket.Conn
	frames  chan string
	writeMu sync.Mutex
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

func newFakeVolumio(t *testing.T) *fakeVolumio {
	t.Helper()

	f := &fakeVolumio{t: t, conns: make(chan *fakeConn, 4)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		fc := &fakeConn{conn: conn, frames: make(chan string, 16)}
		fc.send(t, `0{"sid":"test","pingInterval":25000,"pingTimeout":60000}`)
		fc.send(t, "40")
		f.conns <- fc

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				close(fc.frames)
				return
			}
			frame := string(data)
			if frame == "2" {
				fc.send(t, "3")
				continue
			}
			fc.frames <- frame
		}
	}))
	t.Cleanup(f.srv.Close)

	return f
}

// accept waits for the next session to finish its handshake.
func (f *fakeVolumio) accept(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case fc := <-f.conns:
		return fc
	case <-time.After(5 * time.Second):
		t.Fatal("no session connected")
		return nil
	}
}

func (f *fakeVolumio) config() config.VolumioConfig {
	u, err := url.Parse(f.srv.URL)
	if err != nil {
		f.t.Fatalf("parsing server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		f.t.Fatalf("parsing server port: %v", err)
	}

	return config.VolumioConfig{
		Host:           u.Hostname(),
		Port:           port,
		ConnectTimeout: 5,
		Reconnect: config.ReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     2,
			MaxAttempts:  0,
		},
	}
}

func (c *fakeConn) send(t *testing.T, frame string) {
	t.Helper()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Logf("fake server write failed: %v", err)
	}
}

// expectFrame returns the next non-keepalive frame from the client.
func (c *fakeConn) expectFrame(t *testing.T) string {
	t.Helper()
	select {
	case frame, ok := <-c.frames:
		if !ok {
			t.Fatal("connection closed while waiting for a frame")
		}
		return frame
	case <-time.After(5 * time.Second):
		t.Fatal("no frame received")
		return ""
	}
}

func connectTestSession(t *testing.T, f *fakeVolumio) (*Session, *fakeConn) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Connect(ctx, f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck // Close is idempotent

	return s, f.accept(t)
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestConnect_CompletesHandshake(t *testing.T) {
	f := newFakeVolumio(t)
	s, _ := connectTestSession(t, f)

	if !s.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := s.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_FailsWhenServerUnreachable(t *testing.T) {
	f := newFakeVolumio(t)
	cfg := f.config()
	f.srv.Close()

	cfg.ConnectTimeout = 1
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestEmit_WritesEventFrame(t *testing.T) {
	f := newFakeVolumio(t)
	s, fc := connectTestSession(t, f)

	if err := s.Emit("play", nil, nil); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	if frame := fc.expectFrame(t); frame != `42["play"]` {
		t.Errorf("frame = %q, want 42[\"play\"]", frame)
	}
}

func TestEmit_AckRoundTrip(t *testing.T) {
	f := newFakeVolumio(t)
	s, fc := connectTestSession(t, f)

	acked := make(chan []any, 1)
	err := s.Emit("playPlaylist", map[string]any{"name": "0004775724"}, func(args []any) {
		acked <- args
	})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	frame := fc.expectFrame(t)
	if !strings.HasPrefix(frame, "42") {
		t.Fatalf("frame = %q, want an event frame", frame)
	}

	// Extract the acknowledgement id and answer it.
	rest := strings.TrimPrefix(frame, "42")
	idEnd := strings.IndexByte(rest, '[')
	if idEnd <= 0 {
		t.Fatalf("frame = %q carries no acknowledgement id", frame)
	}
	fc.send(t, "43"+rest[:idEnd]+`["queued"]`)

	select {
	case args := <-acked:
		if len(args) != 1 || args[0] != "queued" {
			t.Errorf("ack args = %v, want [queued]", args)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("acknowledgement callback never fired")
	}
}

func TestEmit_DroppedWhileDisconnected(t *testing.T) {
	f := newFakeVolumio(t)
	s, fc := connectTestSession(t, f)

	// Kill the server side entirely so the session cannot redial.
	f.srv.Close()
	fc.conn.Close()

	waitFor(t, 5*time.Second, func() bool { return !s.IsConnected() },
		"session never noticed the lost connection")

	if err := s.Emit("play", nil, nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Emit() error = %v, want ErrNotConnected", err)
	}
	if err := s.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestPushState_ReplacesSnapshot(t *testing.T) {
	f := newFakeVolumio(t)
	s, fc := connectTestSession(t, f)

	states := make(chan State, 2)
	s.SetOnState(func(st State) { states <- st })

	fc.send(t, `42["pushState",{"status":"play","title":"Song A","artist":"Band","volume":42,"mute":false}]`)

	select {
	case st := <-states:
		if st.Status != "play" || st.Title != "Song A" || st.Volume != 42 {
			t.Errorf("state = %+v, want play/Song A/42", st)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("state callback never fired")
	}

	// The next broadcast replaces the whole snapshot: fields the server
	// omits fall back to zero values rather than sticking around.
	fc.send(t, `42["pushState",{"status":"stop","volume":42}]`)

	waitFor(t, 5*time.Second, func() bool { return s.State().Status == "stop" },
		"snapshot never updated to the second broadcast")

	if st := s.State(); st.Title != "" {
		t.Errorf("State().Title = %q, want empty after full replacement", st.Title)
	}
}

func TestMuted_TracksSnapshot(t *testing.T) {
	f := newFakeVolumio(t)
	s, fc := connectTestSession(t, f)

	if s.Muted() {
		t.Error("Muted() = true before any pushState, want false")
	}

	fc.send(t, `42["pushState",{"status":"play","mute":true}]`)
	waitFor(t, 5*time.Second, s.Muted, "Muted() never turned true")

	fc.send(t, `42["pushState",{"status":"play","mute":false}]`)
	waitFor(t, 5*time.Second, func() bool { return !s.Muted() },
		"Muted() never turned false again")
}

func TestReconnect_AfterConnectionLoss(t *testing.T) {
	f := newFakeVolumio(t)
	s, fc := connectTestSession(t, f)

	reconnected := make(chan struct{}, 1)
	s.SetOnConnect(func() { reconnected <- struct{}{} })

	// Drop the connection from the server side; the session must redial.
	fc.conn.Close()

	f.accept(t)

	select {
	case <-reconnected:
	case <-time.After(10 * time.Second):
		t.Fatal("session never reconnected")
	}

	waitFor(t, 5*time.Second, s.IsConnected, "session not connected after redial")

	if err := s.Emit("play", nil, nil); err != nil {
		t.Errorf("Emit() after reconnect error = %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	f := newFakeVolumio(t)
	s, _ := connectTestSession(t, f)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if err := s.Emit("play", nil, nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Emit() after Close error = %v, want ErrSessionClosed", err)
	}
}
