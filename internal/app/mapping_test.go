package app

import (
	"testing"
	"time"

	"github.com/achrafouajid/noor-daily/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Location: config.LocationConfig{Latitude: 33.5731, Longitude: -7.5898},
	}
}

func TestMapEngineConfigDefaults(t *testing.T) {
	t.Parallel()
	got, err := mapEngineConfig(baseConfig())
	if err != nil {
		t.Fatalf("mapEngineConfig: %v", err)
	}
	if got.TickInterval != time.Second || got.AdhanTolerance != 2*time.Second {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if got.WarnLead != 5*time.Minute || got.WarnWindow != 10*time.Second {
		t.Fatalf("warn defaults not applied: %+v", got)
	}
}

func TestMapEngineConfigRejectsNarrowTolerance(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	cfg.Engine.TickInterval = "5s"
	cfg.Engine.AdhanTolerance = "2s"
	if _, err := mapEngineConfig(cfg); err == nil {
		t.Fatal("want error for tolerance below tick interval")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{"defaults ok", func(*config.Config) {}, false},
		{"bad latitude", func(c *config.Config) { c.Location.Latitude = 91 }, true},
		{"bad longitude", func(c *config.Config) { c.Location.Longitude = -200 }, true},
		{"bad duration", func(c *config.Config) { c.Engine.WarnLead = "five minutes" }, true},
		{"telegram sink without token", func(c *config.Config) {
			c.Sinks.Telegram.Enabled = true
			c.Sinks.Telegram.ChatID = 42
		}, true},
		{"audio sink without file", func(c *config.Config) { c.Sinks.Audio.Enabled = true }, true},
		{"ledger without storage", func(c *config.Config) { c.Engine.PersistLedger = true }, true},
		{"ledger with storage", func(c *config.Config) {
			c.Engine.PersistLedger = true
			c.Storage = &config.StorageConfig{Driver: "file", Path: "./store"}
		}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig()
			tc.mutate(cfg)
			err := validate(cfg)
			if tc.wantErr && err == nil {
				t.Fatal("want error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
