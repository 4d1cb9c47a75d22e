package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/achrafouajid/noor-daily/internal/alarm"
	"github.com/achrafouajid/noor-daily/internal/prayer"
	"github.com/achrafouajid/noor-daily/internal/sink"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

type recordSink struct {
	name string
	fail bool

	mu     sync.Mutex
	events []sink.Event
}

func (r *recordSink) Name() string { return r.name }

func (r *recordSink) Deliver(_ context.Context, ev sink.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	if r.fail {
		return errors.New("boom")
	}
	return nil
}

func (r *recordSink) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.ID
	}
	return out
}

func testTable(t *testing.T, raw map[string]string) *prayer.TimeTable {
	t.Helper()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tt, _ := prayer.NewTimeTable(day, "test", raw)
	return tt
}

func fullDay() map[string]string {
	return map[string]string{
		"Fajr": "04:45", "Sunrise": "06:10", "Dhuhr": "12:10",
		"Asr": "15:30", "Maghrib": "18:05", "Isha": "19:30",
	}
}

func newTestService(t *testing.T, cfg Config, sinks ...sink.Sink) *Service {
	t.Helper()
	return New(cfg, sinks, nil, nil, logx.Nop())
}

func day(hour, min, sec int) time.Time {
	return time.Date(2026, 3, 10, hour, min, sec, 0, time.UTC)
}

func TestTickFiresAdhanAtMostOnce(t *testing.T) {
	t.Parallel()
	rec := &recordSink{name: "rec"}
	s := newTestService(t, Config{}, rec)
	s.SetTimeTable(testTable(t, fullDay()))

	ctx := context.Background()
	for _, now := range []time.Time{
		day(12, 9, 59), day(12, 10, 0), day(12, 10, 1), day(12, 10, 2),
	} {
		s.tick(ctx, now)
	}
	if got := rec.ids(); len(got) != 1 || got[0] != "adhan|Dhuhr" {
		t.Fatalf("fired = %v, want exactly one adhan|Dhuhr", got)
	}
}

func TestTickOutsideToleranceIsSilent(t *testing.T) {
	t.Parallel()
	rec := &recordSink{name: "rec"}
	s := newTestService(t, Config{}, rec)
	s.SetTimeTable(testTable(t, fullDay()))

	s.tick(context.Background(), day(12, 10, 3))
	if got := rec.ids(); len(got) != 0 {
		t.Fatalf("fired = %v, want nothing at target+3s", got)
	}
}

func TestTickSunriseNeverFires(t *testing.T) {
	t.Parallel()
	rec := &recordSink{name: "rec"}
	s := newTestService(t, Config{}, rec)
	s.SetTimeTable(testTable(t, fullDay()))

	s.tick(context.Background(), day(6, 10, 0))
	if got := rec.ids(); len(got) != 0 {
		t.Fatalf("fired = %v, Sunrise must not dispatch", got)
	}
}

func TestTickResetsAcrossDays(t *testing.T) {
	t.Parallel()
	rec := &recordSink{name: "rec"}
	s := newTestService(t, Config{}, rec)
	s.SetTimeTable(testTable(t, fullDay()))

	ctx := context.Background()
	s.tick(ctx, day(12, 10, 0))
	s.tick(ctx, day(12, 10, 0).AddDate(0, 0, 1))
	if got := rec.ids(); len(got) != 2 {
		t.Fatalf("fired = %v, want the same anchor on both days", got)
	}
}

func TestTickPreWarningWindow(t *testing.T) {
	t.Parallel()
	rec := &recordSink{name: "rec"}
	s := newTestService(t, Config{}, rec)
	s.SetTimeTable(testTable(t, fullDay()))

	ctx := context.Background()
	// One second before the mark is outside the one-sided window.
	s.tick(ctx, day(12, 4, 59))
	if got := rec.ids(); len(got) != 0 {
		t.Fatalf("fired before mark: %v", got)
	}
	s.tick(ctx, day(12, 5, 4))
	got := rec.ids()
	if len(got) != 1 || got[0] != "warn|Dhuhr" {
		t.Fatalf("fired = %v, want warn|Dhuhr inside window", got)
	}
	// Past the window end.
	rec2 := &recordSink{name: "rec2"}
	s2 := newTestService(t, Config{}, rec2)
	s2.SetTimeTable(testTable(t, fullDay()))
	s2.tick(ctx, day(12, 5, 11))
	if got := rec2.ids(); len(got) != 0 {
		t.Fatalf("fired past window: %v", got)
	}
}

func TestTickWidenedWarnWindow(t *testing.T) {
	t.Parallel()
	rec := &recordSink{name: "rec"}
	s := newTestService(t, Config{WarnWindow: time.Minute}, rec)
	s.SetTimeTable(testTable(t, fullDay()))

	s.tick(context.Background(), day(12, 5, 45))
	if got := rec.ids(); len(got) != 1 || got[0] != "warn|Dhuhr" {
		t.Fatalf("fired = %v, want warn|Dhuhr with widened window", got)
	}
}

func TestTickCustomAlarmCarriesPastMidnight(t *testing.T) {
	t.Parallel()
	raw := fullDay()
	raw["Isha"] = "23:50"
	rec := &recordSink{name: "rec"}
	s := newTestService(t, Config{}, rec)
	s.SetTimeTable(testTable(t, raw))
	s.SetRules([]alarm.Rule{
		{ID: "late", Anchor: prayer.Isha, OffsetMinutes: 30, Message: "lights out", Enabled: true},
	})

	// 00:20 the next calendar day.
	now := time.Date(2026, 3, 11, 0, 20, 0, 0, time.UTC)
	s.tick(context.Background(), now)
	got := rec.ids()
	if len(got) != 1 || got[0] != "custom|late" {
		t.Fatalf("fired = %v, want custom|late after midnight", got)
	}
	// The same occurrence must not fire again.
	s.tick(context.Background(), now.Add(time.Second))
	if got := rec.ids(); len(got) != 1 {
		t.Fatalf("refired: %v", got)
	}
}

func TestTickDisabledRuleExcluded(t *testing.T) {
	t.Parallel()
	rec := &recordSink{name: "rec"}
	s := newTestService(t, Config{}, rec)
	s.SetTimeTable(testTable(t, fullDay()))
	s.SetRules([]alarm.Rule{
		{ID: "off", Anchor: prayer.Asr, OffsetMinutes: 0, Enabled: false},
	})

	s.tick(context.Background(), day(15, 30, 0))
	for _, id := range rec.ids() {
		if id == "custom|off" {
			t.Fatal("disabled rule fired")
		}
	}
}

func TestSinkFailureDoesNotUnwindLedger(t *testing.T) {
	t.Parallel()
	bad := &recordSink{name: "bad", fail: true}
	good := &recordSink{name: "good"}
	s := newTestService(t, Config{}, bad, good)
	s.SetTimeTable(testTable(t, fullDay()))

	ctx := context.Background()
	s.tick(ctx, day(12, 10, 0))
	if got := good.ids(); len(got) != 1 {
		t.Fatalf("good sink got %v, want one delivery", got)
	}
	// The failed delivery must not cause a retry on the next tick.
	s.tick(ctx, day(12, 10, 1))
	if got := bad.ids(); len(got) != 1 {
		t.Fatalf("bad sink got %v, want no retry", got)
	}
}

func TestTickDeterministicForSameNowSequence(t *testing.T) {
	t.Parallel()
	seq := []time.Time{
		day(4, 40, 2), day(4, 44, 59), day(4, 45, 0), day(4, 45, 1),
		day(12, 5, 3), day(12, 10, 0), day(19, 30, 1),
	}
	run := func() []string {
		rec := &recordSink{name: "rec"}
		s := newTestService(t, Config{}, rec)
		s.SetTimeTable(testTable(t, fullDay()))
		for _, now := range seq {
			s.tick(context.Background(), now)
		}
		return rec.ids()
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("runs differ: %v vs %v", a, b)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("runs differ at %d: %v vs %v", i, a, b)
		}
	}
}

func TestStatusCountdown(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{})
	s.SetTimeTable(testTable(t, fullDay()))
	s.now = func() time.Time { return day(12, 0, 0) }

	st := s.Status()
	if st.NextAnchor != "Dhuhr" {
		t.Fatalf("next = %q, want Dhuhr", st.NextAnchor)
	}
	if st.Countdown != "00:10:00" {
		t.Fatalf("countdown = %q", st.Countdown)
	}
	if st.Locality != "test" {
		t.Fatalf("locality = %q", st.Locality)
	}
}

func TestStatusWithoutTable(t *testing.T) {
	t.Parallel()
	s := newTestService(t, Config{})
	st := s.Status()
	if st.NextAnchor != "" || st.Countdown != "" {
		t.Fatalf("unexpected next on empty service: %+v", st)
	}
}
