package prayer

import (
	"errors"
	"fmt"
	"time"
)

// ErrFajrMissing is returned when the rollover path needs tomorrow's Fajr
// but the table has no parseable Fajr time. Unrecoverable for this call;
// the caller reports it rather than retrying.
var ErrFajrMissing = errors.New("fajr time missing; cannot roll over to next day")

// Next is the single upcoming anchor and its concrete instant.
type Next struct {
	Anchor Anchor
	At     time.Time
}

// ResolveNext computes the nearest future anchor relative to now.
//
// Anchor instants are built on now's calendar date, so the result tracks
// day rollover and process suspension without any stored state. When every
// anchor today is already past, the result is Fajr on the next calendar
// day. Equal instants (malformed input) resolve to the first anchor in
// canonical order; the strict < below makes that a defined policy, not an
// accident of map iteration.
func ResolveNext(tt *TimeTable, now time.Time) (Next, error) {
	if tt == nil {
		return Next{}, ErrNoTimeTable
	}

	var (
		best  Next
		found bool
	)
	for _, a := range tt.Anchors() {
		tod, _ := tt.Time(a)
		at := tod.At(now)
		if !at.After(now) {
			continue
		}
		if !found || at.Before(best.At) {
			best = Next{Anchor: a, At: at}
			found = true
		}
	}
	if found {
		return best, nil
	}

	fajr, ok := tt.Time(Fajr)
	if !ok {
		return Next{}, ErrFajrMissing
	}
	return Next{Anchor: Fajr, At: fajr.At(now.AddDate(0, 0, 1))}, nil
}

// Countdown renders the remaining duration until target as zero-padded
// "HH:MM:SS". A target in the past clamps to "00:00:00" rather than
// erroring, tolerating the resolver and the tick being one cycle out of
// phase.
func Countdown(target, now time.Time) string {
	d := target.Sub(now)
	if d < 0 {
		d = 0
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
