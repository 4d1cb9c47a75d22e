// Package storage persists the user's alarm rules and, optionally, the
// fired-event ledger so a mid-day restart does not re-fire events.
//
// Two drivers: "file" (dependency-free JSON snapshot + JSONL journal) and
// "sqlite" (build tag "sqlite").
package storage
