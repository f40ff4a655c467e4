package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  path: "/dev/input/event7"
  on_unknown: "mark"
volumio:
  host: "volumio.local"
  port: 3000
commands:
  "0004775724":
    command: "play"
  "0004817709":
    command: "volume"
    volume: "-"
logging:
  level: "debug"
  format: "text"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.Path != "/dev/input/event7" {
		t.Errorf("Device.Path = %q, want %q", cfg.Device.Path, "/dev/input/event7")
	}
	if cfg.Device.OnUnknown != OnUnknownMark {
		t.Errorf("Device.OnUnknown = %q, want %q", cfg.Device.OnUnknown, OnUnknownMark)
	}
	if cfg.Volumio.Host != "volumio.local" {
		t.Errorf("Volumio.Host = %q, want %q", cfg.Volumio.Host, "volumio.local")
	}
	if len(cfg.Commands) != 2 {
		t.Fatalf("len(Commands) = %d, want 2", len(cfg.Commands))
	}
	if cfg.Commands["0004817709"].Volume != "-" {
		t.Errorf("Commands[0004817709].Volume = %q, want %q", cfg.Commands["0004817709"].Volume, "-")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Volumio.Host != "localhost" {
		t.Errorf("Volumio.Host = %q, want %q", cfg.Volumio.Host, "localhost")
	}
	if cfg.Volumio.Port != 3000 {
		t.Errorf("Volumio.Port = %d, want 3000", cfg.Volumio.Port)
	}
	if cfg.Device.OnUnknown != OnUnknownDrop {
		t.Errorf("Device.OnUnknown = %q, want %q", cfg.Device.OnUnknown, OnUnknownDrop)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "device: [not a mapping\n"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("VOLUMIOHID_VOLUMIO_HOST", "override.local")
	t.Setenv("VOLUMIOHID_VOLUMIO_PORT", "3030")

	cfg, err := Load(writeConfig(t, "volumio:\n  host: \"file.local\"\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Volumio.Host != "override.local" {
		t.Errorf("Volumio.Host = %q, want env override %q", cfg.Volumio.Host, "override.local")
	}
	if cfg.Volumio.Port != 3030 {
		t.Errorf("Volumio.Port = %d, want env override 3030", cfg.Volumio.Port)
	}
}

func TestValidate_BadUnknownPolicy(t *testing.T) {
	_, err := Load(writeConfig(t, "device:\n  on_unknown: \"explode\"\n"))
	if err == nil {
		t.Fatal("Load() expected error for bad on_unknown policy")
	}
	if !strings.Contains(err.Error(), "on_unknown") {
		t.Errorf("error = %v, want mention of on_unknown", err)
	}
}

func TestValidate_BadPort(t *testing.T) {
	_, err := Load(writeConfig(t, "volumio:\n  port: 99999\n"))
	if err == nil {
		t.Error("Load() expected error for out-of-range port")
	}
}

func TestValidate_EmptyCommandName(t *testing.T) {
	content := `
commands:
  "0001234567":
    command: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for empty command name")
	}
}

func TestValidate_TelemetryRequiresToken(t *testing.T) {
	content := `
telemetry:
  enabled: true
  url: "http://localhost:8086"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for enabled telemetry without token")
	}
}
