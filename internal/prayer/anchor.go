package prayer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Anchor is one of the daily prayer times used as a scheduling reference
// point.
type Anchor string

const (
	Fajr    Anchor = "Fajr"
	Sunrise Anchor = "Sunrise"
	Dhuhr   Anchor = "Dhuhr"
	Asr     Anchor = "Asr"
	Maghrib Anchor = "Maghrib"
	Isha    Anchor = "Isha"
)

// Scheduled is the canonical ordered set of anchors the engine schedules.
// Sunrise may appear in a raw provider table but is never scheduled.
var Scheduled = [5]Anchor{Fajr, Dhuhr, Asr, Maghrib, Isha}

// ParseAnchor normalizes a raw anchor name ("fajr", "FAJR", "Fajr") to its
// canonical form.
func ParseAnchor(s string) (Anchor, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fajr":
		return Fajr, true
	case "sunrise":
		return Sunrise, true
	case "dhuhr":
		return Dhuhr, true
	case "asr":
		return Asr, true
	case "maghrib":
		return Maghrib, true
	case "isha":
		return Isha, true
	}
	return "", false
}

// TimeOfDay is a wall-clock time within a day. It carries no date or zone;
// bind it to a calendar day with At().
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses a zero-padded 24-hour "HH:MM" string. Some provider
// configurations append a zone hint ("04:43 (EET)"); anything after the
// first whitespace is ignored.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	raw := s
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("malformed time %q", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("malformed hour in %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("malformed minute in %q", raw)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("time %q out of range", raw)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

// At binds the time-of-day to day's calendar date in day's location.
func (t TimeOfDay) At(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// DateKey renders the calendar date used to scope fired-event ledger keys.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
