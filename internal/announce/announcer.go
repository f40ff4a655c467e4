package announce

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/edmw/volumio-hid/internal/command"
	"github.com/edmw/volumio-hid/internal/infrastructure/config"
	"github.com/edmw/volumio-hid/internal/volumio"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Announcer publishes the daemon's presence, scans and relayed player
// state over MQTT so home-automation systems can react to card swipes.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Reconnection is handled by the underlying paho client.
type Announcer struct {
	client pahomqtt.Client
	cfg    config.AnnounceConfig
	topics Topics

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	// logger for connection event logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
}

// noopLogger discards all log output.
type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Info(string, ...any)  {}

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament (LWT) for offline detection
//  3. Sets up auto-reconnect with exponential backoff
//  4. Attempts initial connection with timeout
//  5. Publishes retained online status
//
// Parameters:
//   - cfg: Announce configuration from config.yaml
//
// Returns:
//   - *Announcer: Connected announcer ready for use
//   - error: If the announcer is disabled or connection fails
func Connect(cfg config.AnnounceConfig) (*Announcer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	a := &Announcer{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
		logger: noopLogger{},
	}

	opts := buildClientOptions(cfg)
	a.configureLWT(opts)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		a.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		a.handleDisconnect(err)
	})

	a.client = pahomqtt.NewClient(opts)
	token := a.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Set connected state immediately: the OnConnectHandler runs
	// asynchronously and may not have executed yet.
	a.connMu.Lock()
	a.connected = true
	a.connMu.Unlock()

	return a, nil
}

// buildClientOptions creates paho MQTT options from the announce config.
func buildClientOptions(cfg config.AnnounceConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - no persistent session on the broker.
	opts.SetCleanSession(true)

	// Auto-reconnect; the announcer is best-effort and must never block
	// the device pipeline on broker availability.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes the will if the daemon disconnects unexpectedly,
// so subscribers can distinguish a crash from a graceful shutdown.
func (a *Announcer) configureLWT(opts *pahomqtt.ClientOptions) {
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		a.cfg.Broker.ClientID,
		time.Now().UTC().Format(time.RFC3339),
	)
	opts.SetWill(a.topics.Status(), willPayload, 1, true)
}

// handleConnect is called when the connection is established.
func (a *Announcer) handleConnect() {
	a.connMu.Lock()
	a.connected = true
	a.connMu.Unlock()

	a.publishOnlineStatus()
	a.getLogger().Info("announcer connected", "broker", a.cfg.Broker.Host)
}

// handleDisconnect is called when the connection is lost.
// The paho client redials on its own; this is log-only.
func (a *Announcer) handleDisconnect(err error) {
	a.connMu.Lock()
	a.connected = false
	a.connMu.Unlock()

	a.getLogger().Warn("announcer connection lost", "error", err)
}

// publishOnlineStatus publishes the retained online presence message.
func (a *Announcer) publishOnlineStatus() {
	payload := fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		a.cfg.Broker.ClientID,
		time.Now().UTC().Format(time.RFC3339),
	)
	a.client.Publish(a.topics.Status(), byte(a.cfg.QoS), true, payload)
}

// PublishScan announces one finalized scan.
//
// The message is not retained: a scan is an event, not a state. Publish
// failures are returned for logging but must not stop the pipeline.
func (a *Announcer) PublishScan(identifier string, outcome command.Outcome, commandName string) error {
	payload, err := json.Marshal(map[string]string{
		"identifier": identifier,
		"outcome":    string(outcome),
		"command":    commandName,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshalling scan announcement: %w", err)
	}

	return a.publish(a.topics.Scan(), payload, false)
}

// PublishPlayerState relays a player state snapshot, retained so new
// subscribers immediately see the current player state.
func (a *Announcer) PublishPlayerState(state volumio.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling player state: %w", err)
	}

	return a.publish(a.topics.PlayerState(), payload, true)
}

// publish sends one message with the configured QoS and a bounded wait.
func (a *Announcer) publish(topic string, payload []byte, retained bool) error {
	if !a.IsConnected() {
		return ErrNotConnected
	}

	token := a.client.Publish(topic, byte(a.cfg.QoS), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes a retained graceful offline status (distinct from the LWT
// crash status) before disconnecting.
func (a *Announcer) Close() error {
	if a.client == nil {
		return nil
	}

	if a.IsConnected() {
		payload := fmt.Sprintf(
			`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
			a.cfg.Broker.ClientID,
			time.Now().UTC().Format(time.RFC3339),
		)
		token := a.client.Publish(a.topics.Status(), byte(a.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	a.client.Disconnect(defaultDisconnectQuiesce)

	a.connMu.Lock()
	a.connected = false
	a.connMu.Unlock()

	return nil
}

// HealthCheck verifies the broker connection is alive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (a *Announcer) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("announce health check: %w", ctx.Err())
	default:
	}

	if !a.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (a *Announcer) IsConnected() bool {
	a.connMu.RLock()
	defer a.connMu.RUnlock()
	return a.connected && a.client.IsConnected()
}

// SetLogger sets a logger for connection events.
// If not set, the announcer is silent.
func (a *Announcer) SetLogger(logger Logger) {
	a.loggerMu.Lock()
	a.logger = logger
	a.loggerMu.Unlock()
}

// getLogger returns the current logger.
func (a *Announcer) getLogger() Logger {
	a.loggerMu.RLock()
	defer a.loggerMu.RUnlock()
	return a.logger
}
