package engine

import (
	"errors"
	"time"

	"github.com/achrafouajid/noor-daily/internal/prayer"
)

// Status is a point-in-time view for the HTTP API.
type Status struct {
	Locality   string            `json:"locality,omitempty"`
	Date       string            `json:"date,omitempty"`
	Times      map[string]string `json:"times,omitempty"`
	NextAnchor string            `json:"nextAnchor,omitempty"`
	NextAt     *time.Time        `json:"nextAt,omitempty"`
	Countdown  string            `json:"countdown,omitempty"`
	FiredToday []string          `json:"firedToday"`
}

// Status reports the current table, the next scheduled anchor with its
// live countdown, and today's fired keys.
func (s *Service) Status() Status {
	now := s.now()

	s.mu.RLock()
	tt := s.table
	today := prayer.DateKey(now)
	fired := make([]string, 0, 8)
	suffix := "@" + today
	for k := range s.ledger {
		if len(k) > len(suffix) && k[len(k)-len(suffix):] == suffix {
			fired = append(fired, k)
		}
	}
	s.mu.RUnlock()

	st := Status{Date: today, FiredToday: fired}
	if tt == nil {
		return st
	}

	st.Locality = tt.Locality
	st.Times = map[string]string{}
	for _, a := range tt.Anchors() {
		if tod, ok := tt.Time(a); ok {
			st.Times[string(a)] = tod.String()
		}
	}

	next, err := prayer.ResolveNext(tt, now)
	if err != nil {
		if !errors.Is(err, prayer.ErrNoTimeTable) && !errors.Is(err, prayer.ErrFajrMissing) {
			s.log.Warn("next prayer resolution failed")
		}
		return st
	}
	st.NextAnchor = string(next.Anchor)
	at := next.At
	st.NextAt = &at
	st.Countdown = prayer.Countdown(next.At, now)
	return st
}
