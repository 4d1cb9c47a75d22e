package prayer

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTimeTable is returned by operations that need a table before one has
// been fetched. Not an error state for the engine, which simply idles.
var ErrNoTimeTable = errors.New("no timetable available")

// TimeTable is the canonical mapping from anchor to time-of-day for one
// calendar day. It is immutable once built and replaced wholesale on
// re-fetch (new day, new location).
type TimeTable struct {
	// FetchedFor is the calendar day the table was fetched for.
	FetchedFor time.Time
	// Locality is the provider's opaque locality label (e.g. a timezone
	// name) used for display only.
	Locality string

	times map[Anchor]TimeOfDay
}

// NewTimeTable builds a table from raw "HH:MM" strings keyed by anchor name.
//
// Parsing is per-anchor: a malformed or missing entry skips that anchor and
// is reported in the returned error map, never failing the others. Sunrise
// is parsed when present but remains unscheduled. Callers decide whether a
// partial table is acceptable (the refresher requires Fajr, which the
// rollover path depends on).
func NewTimeTable(fetchedFor time.Time, locality string, raw map[string]string) (*TimeTable, map[Anchor]error) {
	tt := &TimeTable{
		FetchedFor: fetchedFor,
		Locality:   locality,
		times:      make(map[Anchor]TimeOfDay, len(Scheduled)+1),
	}
	bad := map[Anchor]error{}

	parse := func(a Anchor) {
		s, ok := raw[string(a)]
		if !ok {
			bad[a] = fmt.Errorf("anchor %s missing from table", a)
			return
		}
		tod, err := ParseTimeOfDay(s)
		if err != nil {
			bad[a] = fmt.Errorf("anchor %s: %w", a, err)
			return
		}
		tt.times[a] = tod
	}

	for _, a := range Scheduled {
		parse(a)
	}
	if s, ok := raw[string(Sunrise)]; ok {
		if tod, err := ParseTimeOfDay(s); err == nil {
			tt.times[Sunrise] = tod
		}
	}

	if len(bad) == 0 {
		bad = nil
	}
	return tt, bad
}

// Time reports the time-of-day for an anchor, if the table has it.
func (tt *TimeTable) Time(a Anchor) (TimeOfDay, bool) {
	if tt == nil {
		return TimeOfDay{}, false
	}
	tod, ok := tt.times[a]
	return tod, ok
}

// Anchors returns the scheduled anchors present in the table, in canonical
// order.
func (tt *TimeTable) Anchors() []Anchor {
	if tt == nil {
		return nil
	}
	out := make([]Anchor, 0, len(Scheduled))
	for _, a := range Scheduled {
		if _, ok := tt.times[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Complete reports whether all five scheduled anchors parsed.
func (tt *TimeTable) Complete() bool {
	return tt != nil && len(tt.Anchors()) == len(Scheduled)
}
