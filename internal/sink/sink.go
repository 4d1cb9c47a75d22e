// Package sink defines the delivery contract for dispatched events.
package sink

import (
	"context"
	"time"

	"github.com/achrafouajid/noor-daily/internal/prayer"
)

// Kind classifies a dispatched event.
type Kind string

const (
	KindAdhan   Kind = "adhan"
	KindWarning Kind = "warning"
	KindCustom  Kind = "custom"
)

// Event is one occurrence handed to sinks. ID is stable for the
// occurrence within its day (the dedup ledger keys on ID plus date).
type Event struct {
	ID      string
	Kind    Kind
	Anchor  prayer.Anchor
	Message string
	At      time.Time
}

// Sink delivers events to one destination. Deliver must be safe to call
// from the dispatch loop; slow destinations should queue internally and
// return quickly. A returned error marks the delivery failed for that
// sink only.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}
