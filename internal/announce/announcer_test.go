package announce

import (
	"errors"
	"os"
	"testing"

	"github.com/edmw/volumio-hid/internal/infrastructure/config"
)

func testConfig() config.AnnounceConfig {
	return config.AnnounceConfig{
		Enabled: true,
		Broker: config.AnnounceBroker{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "volumio-hid-test",
		},
		QoS:         1,
		TopicPrefix: "volumiohid",
	}
}

// skipIfNoBroker skips the test if no local MQTT broker is running.
func skipIfNoBroker(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		a, err := Connect(testConfig())
		if err != nil {
			t.Skip("MQTT broker not available, skipping integration test")
		}
		a.Close() //nolint:errcheck // Probe connection only
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "volumiohid"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", topics.Status(), "volumiohid/status"},
		{"scan", topics.Scan(), "volumiohid/scan"},
		{"player state", topics.PlayerState(), "volumiohid/player/state"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s topic = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "user"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "volumio-hid-test" {
		t.Errorf("client id = %q", opts.ClientID)
	}
	if opts.Username != "user" {
		t.Errorf("username = %q, want user", opts.Username)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true

	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Error("TLS config not set")
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_PublishScan(t *testing.T) {
	skipIfNoBroker(t)

	a, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer a.Close() //nolint:errcheck // Test cleanup

	if !a.IsConnected() {
		t.Fatal("IsConnected() = false after Connect()")
	}

	if err := a.PublishScan("0004775724", "command", "play"); err != nil {
		t.Errorf("PublishScan() error = %v", err)
	}
}

func TestPublish_NotConnected(t *testing.T) {
	skipIfNoBroker(t)

	a, err := Connect(testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := a.PublishScan("123", "unmatched", ""); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishScan() after Close error = %v, want ErrNotConnected", err)
	}
}
