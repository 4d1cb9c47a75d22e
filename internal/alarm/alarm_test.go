package alarm

import (
	"context"
	"testing"
	"time"

	"github.com/achrafouajid/noor-daily/internal/eventbus"
	"github.com/achrafouajid/noor-daily/internal/prayer"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

func mustTable(t *testing.T, raw map[string]string) *prayer.TimeTable {
	t.Helper()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tt, bad := prayer.NewTimeTable(day, "test", raw)
	for a, err := range bad {
		t.Fatalf("anchor %s: %v", a, err)
	}
	return tt
}

func TestResolveDayOffsets(t *testing.T) {
	t.Parallel()
	tt := mustTable(t, map[string]string{
		"Fajr": "04:45", "Dhuhr": "12:10", "Asr": "15:30",
		"Maghrib": "18:05", "Isha": "19:30",
	})
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	rules := []Rule{
		{ID: "a", Anchor: prayer.Isha, OffsetMinutes: 90, Enabled: true},
		{ID: "b", Anchor: prayer.Fajr, OffsetMinutes: -15, Enabled: true},
		{ID: "c", Anchor: prayer.Dhuhr, OffsetMinutes: 5, Enabled: false},
	}
	occs, skipped := ResolveDay(tt, rules, day)
	if len(skipped) != 0 {
		t.Fatalf("unexpected skips: %v", skipped)
	}
	if len(occs) != 2 {
		t.Fatalf("got %d occurrences, want 2 (disabled rule excluded)", len(occs))
	}
	want := map[string]string{"a": "21:00", "b": "04:30"}
	for _, occ := range occs {
		if got := occ.At.Format("15:04"); got != want[occ.Rule.ID] {
			t.Errorf("rule %s at %s, want %s", occ.Rule.ID, got, want[occ.Rule.ID])
		}
	}
}

func TestResolveDayCarriesPastMidnight(t *testing.T) {
	t.Parallel()
	tt := mustTable(t, map[string]string{
		"Fajr": "04:45", "Dhuhr": "12:10", "Asr": "15:30",
		"Maghrib": "18:05", "Isha": "23:50",
	})
	day := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	occs, _ := ResolveDay(tt, []Rule{
		{ID: "late", Anchor: prayer.Isha, OffsetMinutes: 30, Enabled: true},
	}, day)
	if len(occs) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(occs))
	}
	want := time.Date(2026, 3, 11, 0, 20, 0, 0, time.UTC)
	if !occs[0].At.Equal(want) {
		t.Fatalf("at = %s, want %s", occs[0].At, want)
	}
}

func TestResolveDaySkipsMissingAnchor(t *testing.T) {
	t.Parallel()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tt, _ := prayer.NewTimeTable(day, "test", map[string]string{
		"Fajr": "04:45", "Dhuhr": "12:10", "Asr": "15:30", "Maghrib": "18:05",
		"Isha": "garbage",
	})
	occs, skipped := ResolveDay(tt, []Rule{
		{ID: "x", Anchor: prayer.Isha, OffsetMinutes: 0, Enabled: true},
		{ID: "y", Anchor: prayer.Fajr, OffsetMinutes: 0, Enabled: true},
	}, day)
	if len(occs) != 1 || occs[0].Rule.ID != "y" {
		t.Fatalf("occurrences = %+v, want only y", occs)
	}
	if len(skipped) != 1 || skipped[0].ID != "x" {
		t.Fatalf("skipped = %+v, want only x", skipped)
	}
}

func TestRulesCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(8)
	defer unsub()

	s := NewRules(nil, bus, logx.Nop())

	r, err := s.Put(ctx, Rule{Anchor: prayer.Fajr, OffsetMinutes: -10, Message: "m", Enabled: true})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if r.ID == "" {
		t.Fatal("Put did not mint an ID")
	}
	select {
	case e := <-ch:
		if e.Type != eventbus.TypeAlarmsChanged {
			t.Fatalf("event type %q", e.Type)
		}
	default:
		t.Fatal("no event published on Put")
	}

	if _, err := s.Put(ctx, Rule{ID: "bad", Anchor: "Brunch", Enabled: true}); err == nil {
		t.Fatal("want error for unknown anchor")
	}

	got, ok := s.Get(r.ID)
	if !ok || got.Message != "m" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if n := len(s.Snapshot()); n != 1 {
		t.Fatalf("snapshot size %d", n)
	}

	if err := s.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := len(s.Snapshot()); n != 0 {
		t.Fatalf("snapshot size after delete %d", n)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete(missing): %v", err)
	}
}
