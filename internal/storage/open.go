package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

// Store is the minimal persistence API used by the alarm service and the
// engine's fired-event ledger.
type Store interface {
	ListAlarms(ctx context.Context) ([]AlarmRecord, error)
	PutAlarm(ctx context.Context, rec AlarmRecord) error
	DeleteAlarm(ctx context.Context, id string) error

	MarkFired(ctx context.Context, key string, at time.Time) error
	ListFired(ctx context.Context, dateKey string) ([]string, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
