package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", `
logging:
  level: debug
  console: true
location:
  latitude: 33.5731
  longitude: -7.5898
  label: Casablanca
engine:
  tick_interval: 1s
  persist_ledger: true
storage:
  driver: file
  path: ./store
`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Location.Label != "Casablanca" || cfg.Location.Latitude != 33.5731 {
		t.Fatalf("location = %+v", cfg.Location)
	}
	if !cfg.Engine.PersistLedger || cfg.Engine.TickInterval != "1s" {
		t.Fatalf("engine = %+v", cfg.Engine)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json",
		`{"location": {"latitude": 21.4225, "longitude": 39.8262}}`)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Location.Latitude != 21.4225 {
		t.Fatalf("location = %+v", cfg.Location)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", `
location:
  latitude: 1
  longitud: 2
`)
	if _, err := m.Load(); err == nil {
		t.Fatal("want error for misspelled field")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{"http": {"enabled": true}} {"extra": 1}`)
	if _, err := m.Load(); err == nil {
		t.Fatal("want error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if _, err := ParseDurationField("engine.tick_interval", "oops"); err == nil {
		t.Fatal("want error for bad duration")
	}
	d, err := ParseDurationOrDefault("engine.tick_interval", "", 5*time.Second)
	if err != nil || d != 5*time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("engine.tick_interval", "250ms", time.Second)
	if err != nil || d != 250*time.Millisecond {
		t.Fatalf("parsed = %v, %v", d, err)
	}
}
