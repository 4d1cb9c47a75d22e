// Package alarm holds user-defined alarm rules and resolves them to
// concrete instants for a given day.
package alarm

import (
	"fmt"
	"time"

	"github.com/achrafouajid/noor-daily/internal/prayer"
	"github.com/achrafouajid/noor-daily/internal/storage"
)

// Rule is a user-defined alarm anchored to a prayer time.
type Rule struct {
	ID            string        `json:"id"`
	Anchor        prayer.Anchor `json:"anchor"`
	OffsetMinutes int           `json:"offsetMinutes"`
	Message       string        `json:"message"`
	Enabled       bool          `json:"enabled"`
}

// Validate canonicalizes the anchor and rejects rules the engine could
// never fire.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("alarm rule: id is required")
	}
	a, ok := prayer.ParseAnchor(string(r.Anchor))
	if !ok || a == prayer.Sunrise {
		return fmt.Errorf("alarm rule %s: anchor %q is not schedulable", r.ID, r.Anchor)
	}
	r.Anchor = a
	return nil
}

func (r Rule) toRecord() storage.AlarmRecord {
	return storage.AlarmRecord{
		ID:            r.ID,
		Anchor:        string(r.Anchor),
		OffsetMinutes: r.OffsetMinutes,
		Message:       r.Message,
		Enabled:       r.Enabled,
	}
}

func fromRecord(rec storage.AlarmRecord) Rule {
	return Rule{
		ID:            rec.ID,
		Anchor:        prayer.Anchor(rec.Anchor),
		OffsetMinutes: rec.OffsetMinutes,
		Message:       rec.Message,
		Enabled:       rec.Enabled,
	}
}

// Occurrence is a rule resolved against a timetable for one day.
type Occurrence struct {
	Rule Rule
	At   time.Time
}

// ResolveDay maps enabled rules to instants using the table's times for
// the given day. Offsets go through time arithmetic, so a late Isha rule
// may land on the next calendar day. Rules whose anchor is absent from
// the table are skipped and reported in the second return value.
func ResolveDay(tt *prayer.TimeTable, rules []Rule, day time.Time) ([]Occurrence, []Rule) {
	if tt == nil {
		return nil, nil
	}
	var out []Occurrence
	var skipped []Rule
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		tod, ok := tt.Time(r.Anchor)
		if !ok {
			skipped = append(skipped, r)
			continue
		}
		at := tod.At(day).Add(time.Duration(r.OffsetMinutes) * time.Minute)
		out = append(out, Occurrence{Rule: r, At: at})
	}
	return out, skipped
}
