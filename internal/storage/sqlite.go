//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

//go:embed migrations.sql
var migrationsSQL string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", url.PathEscape(path), busy.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers itself; a single connection avoids
	// SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, migrationsSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) ListAlarms(ctx context.Context) ([]AlarmRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, anchor, offset_minutes, message, enabled FROM alarms ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AlarmRecord
	for rows.Next() {
		var rec AlarmRecord
		var enabled int
		if err := rows.Scan(&rec.ID, &rec.Anchor, &rec.OffsetMinutes, &rec.Message, &enabled); err != nil {
			return nil, err
		}
		rec.Enabled = enabled != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PutAlarm(ctx context.Context, rec AlarmRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("alarm id is required")
	}
	enabled := 0
	if rec.Enabled {
		enabled = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO alarms (id, anchor, offset_minutes, message, enabled)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    anchor = excluded.anchor,
    offset_minutes = excluded.offset_minutes,
    message = excluded.message,
    enabled = excluded.enabled`,
		rec.ID, rec.Anchor, rec.OffsetMinutes, rec.Message, enabled)
	return err
}

func (s *sqliteStore) DeleteAlarm(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE id = ?`, id)
	return err
}

func (s *sqliteStore) MarkFired(ctx context.Context, key string, at time.Time) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	dateKey := key
	if i := strings.LastIndexByte(key, '@'); i >= 0 {
		dateKey = key[i+1:]
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO fired (key, date_key, at_ms) VALUES (?, ?, ?)
ON CONFLICT(key) DO NOTHING`, key, dateKey, at.UnixMilli())
	if err != nil {
		return err
	}
	// Keep yesterday's keys: midnight-straddling occurrences are keyed
	// by anchor day and still need them after a restart.
	floor := at.AddDate(0, 0, -1).Format("2006-01-02")
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fired WHERE date_key < ?`, floor); err != nil {
		s.log.Debug("fired ledger prune failed", logx.Err(err))
	}
	return nil
}

func (s *sqliteStore) ListFired(ctx context.Context, dateKey string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM fired WHERE date_key = ? ORDER BY key`, dateKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
