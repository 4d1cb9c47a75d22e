package storage

import (
	"time"
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (json snapshot + jsonl journal)
//   - "sqlite": SQLite database file (build tag "sqlite")
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AlarmRecord is the persisted shape of a user alarm rule. Kept flat and
// schema-stable; the alarm package owns the domain type.
type AlarmRecord struct {
	ID            string `json:"id"`
	Anchor        string `json:"anchor"`
	OffsetMinutes int    `json:"offset_minutes"`
	Message       string `json:"message"`
	Enabled       bool   `json:"enabled"`
}
