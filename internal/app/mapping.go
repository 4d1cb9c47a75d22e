package app

import (
	"fmt"
	"time"

	"github.com/achrafouajid/noor-daily/internal/config"
	"github.com/achrafouajid/noor-daily/internal/engine"
	"github.com/achrafouajid/noor-daily/internal/provider/aladhan"
	"github.com/achrafouajid/noor-daily/internal/storage"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Logging.Telegram.ChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapEngineConfig(cfg *config.Config) (engine.Config, error) {
	tick, err := config.ParseDurationOrDefault("engine.tick_interval", cfg.Engine.TickInterval, time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	adhan, err := config.ParseDurationOrDefault("engine.adhan_tolerance", cfg.Engine.AdhanTolerance, 2*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	lead, err := config.ParseDurationOrDefault("engine.warn_lead", cfg.Engine.WarnLead, 5*time.Minute)
	if err != nil {
		return engine.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("engine.warn_window", cfg.Engine.WarnWindow, 10*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	custom, err := config.ParseDurationOrDefault("engine.custom_tolerance", cfg.Engine.CustomTolerance, 10*time.Second)
	if err != nil {
		return engine.Config{}, err
	}
	for name, tol := range map[string]time.Duration{
		"engine.adhan_tolerance":  adhan,
		"engine.warn_window":      window,
		"engine.custom_tolerance": custom,
	} {
		if tol < tick {
			return engine.Config{}, fmt.Errorf("%s (%s) must be >= engine.tick_interval (%s)", name, tol, tick)
		}
	}
	return engine.Config{
		TickInterval:    tick,
		AdhanTolerance:  adhan,
		WarnLead:        lead,
		WarnWindow:      window,
		CustomTolerance: custom,
		PersistLedger:   cfg.Engine.PersistLedger,
	}, nil
}

func mapRefresherConfig(cfg *config.Config) aladhan.RefresherConfig {
	return aladhan.RefresherConfig{
		Latitude:    cfg.Location.Latitude,
		Longitude:   cfg.Location.Longitude,
		Label:       cfg.Location.Label,
		RefreshCron: cfg.Provider.RefreshCron,
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}

// validate rejects bad configs before the manager commits them, so a
// broken hot-reload never reaches the live services.
func validate(cfg *config.Config) error {
	if _, err := mapEngineConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := config.ParseDurationOrDefault("provider.timeout", cfg.Provider.Timeout, 0); err != nil {
		return err
	}
	if lat := cfg.Location.Latitude; lat < -90 || lat > 90 {
		return fmt.Errorf("location.latitude out of range: %v", lat)
	}
	if lon := cfg.Location.Longitude; lon < -180 || lon > 180 {
		return fmt.Errorf("location.longitude out of range: %v", lon)
	}
	if cfg.Sinks.Telegram.Enabled {
		if cfg.Sinks.Telegram.Token == "" {
			return fmt.Errorf("sinks.telegram.token is required when the sink is enabled")
		}
		if cfg.Sinks.Telegram.ChatID == 0 {
			return fmt.Errorf("sinks.telegram.chat_id is required when the sink is enabled")
		}
	}
	if cfg.Sinks.Audio.Enabled && cfg.Sinks.Audio.File == "" {
		return fmt.Errorf("sinks.audio.file is required when the sink is enabled")
	}
	if cfg.Engine.PersistLedger && cfg.Storage == nil {
		return fmt.Errorf("engine.persist_ledger requires a storage section")
	}
	return nil
}
