// Package engine runs the dispatch loop: each tick it derives the
// occurrences due around now (adhan, pre-warnings, custom alarms),
// fires each at most once per day through the configured sinks, and
// records fired keys in a ledger.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/achrafouajid/noor-daily/internal/alarm"
	"github.com/achrafouajid/noor-daily/internal/eventbus"
	"github.com/achrafouajid/noor-daily/internal/prayer"
	"github.com/achrafouajid/noor-daily/internal/sink"
	"github.com/achrafouajid/noor-daily/internal/storage"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

// Config holds the dispatch tolerances. All windows are evaluated
// against the tick clock, so they must comfortably exceed the tick
// interval or occurrences can fall between ticks.
type Config struct {
	// TickInterval is the dispatch clock period.
	TickInterval time.Duration
	// AdhanTolerance is the two-sided window around each anchor.
	AdhanTolerance time.Duration
	// WarnLead is how far before the anchor the pre-warning mark sits.
	WarnLead time.Duration
	// WarnWindow is the one-sided window after the pre-warning mark.
	WarnWindow time.Duration
	// CustomTolerance is the two-sided window around custom alarms.
	CustomTolerance time.Duration
	// PersistLedger mirrors fired keys into storage so restarts do not
	// re-fire.
	PersistLedger bool
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.AdhanTolerance <= 0 {
		c.AdhanTolerance = 2 * time.Second
	}
	if c.WarnLead <= 0 {
		c.WarnLead = 5 * time.Minute
	}
	if c.WarnWindow <= 0 {
		c.WarnWindow = 10 * time.Second
	}
	if c.CustomTolerance <= 0 {
		c.CustomTolerance = 10 * time.Second
	}
	return c
}

// Service is the dispatch engine. All mutation funnels through atomics
// or the mutex and takes effect at the next tick boundary; the tick
// body itself runs on a single goroutine.
type Service struct {
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store
	sinks []sink.Sink

	now func() time.Time

	mu     sync.RWMutex
	cfg    Config
	table  *prayer.TimeTable
	rules  []alarm.Rule
	ledger map[string]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, sinks []sink.Sink, store storage.Store, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log.With(logx.String("svc", "engine")),
		bus:    bus,
		store:  store,
		sinks:  sinks,
		now:    time.Now,
		cfg:    cfg.withDefaults(),
		ledger: map[string]struct{}{},
	}
}

// Start loads the persisted ledger for today and yesterday, then runs
// the tick loop until Stop.
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.PersistLedger && s.store != nil {
		now := s.now()
		for _, dk := range []string{
			prayer.DateKey(now.AddDate(0, 0, -1)),
			prayer.DateKey(now),
		} {
			keys, err := s.store.ListFired(ctx, dk)
			if err != nil {
				s.log.Warn("ledger load failed", logx.String("date", dk), logx.Err(err))
				continue
			}
			s.mu.Lock()
			for _, k := range keys {
				s.ledger[k] = struct{}{}
			}
			s.mu.Unlock()
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		t := time.NewTicker(s.cfg.TickInterval)
		defer t.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-t.C:
				s.tick(runCtx, s.now())
			}
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Apply swaps the tolerances. TickInterval changes take effect on
// restart only.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	cfg.TickInterval = s.cfg.TickInterval
	s.cfg = cfg
	s.mu.Unlock()
}

// SetTimeTable swaps the table wholesale. It takes effect at the next
// tick.
func (s *Service) SetTimeTable(tt *prayer.TimeTable) {
	s.mu.Lock()
	s.table = tt
	s.mu.Unlock()
}

// SetRules replaces the custom alarm set.
func (s *Service) SetRules(rules []alarm.Rule) {
	cp := make([]alarm.Rule, len(rules))
	copy(cp, rules)
	s.mu.Lock()
	s.rules = cp
	s.mu.Unlock()
}

// occurrence is an internal dispatch candidate. Key is the ledger key.
type occurrence struct {
	key string
	ev  sink.Event
}

// tick derives due occurrences around now and fires the unseen ones.
// It is deterministic given the table, rules, tolerances and now.
func (s *Service) tick(ctx context.Context, now time.Time) {
	s.mu.RLock()
	cfg := s.cfg
	tt := s.table
	rules := s.rules
	s.mu.RUnlock()

	if tt == nil {
		return
	}

	due := dueOccurrences(tt, rules, cfg, now)
	if len(due) == 0 {
		s.pruneLedger(now)
		return
	}

	for _, occ := range due {
		s.mu.Lock()
		if _, seen := s.ledger[occ.key]; seen {
			s.mu.Unlock()
			continue
		}
		s.ledger[occ.key] = struct{}{}
		s.mu.Unlock()

		s.fire(ctx, occ, cfg.PersistLedger)
	}
	s.pruneLedger(now)
}

// dueOccurrences enumerates everything inside its window at now.
// Anchors are resolved against yesterday, today and tomorrow so that
// pre-warnings and offset alarms straddling midnight are not missed.
func dueOccurrences(tt *prayer.TimeTable, rules []alarm.Rule, cfg Config, now time.Time) []occurrence {
	var out []occurrence
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for delta := -1; delta <= 1; delta++ {
		day := today.AddDate(0, 0, delta)
		dk := prayer.DateKey(day)

		for _, a := range tt.Anchors() {
			tod, _ := tt.Time(a)
			target := tod.At(day)

			if d := now.Sub(target); d >= -cfg.AdhanTolerance && d <= cfg.AdhanTolerance {
				out = append(out, occurrence{
					key: fmt.Sprintf("adhan|%s@%s", a, dk),
					ev: sink.Event{
						ID:      "adhan|" + string(a),
						Kind:    sink.KindAdhan,
						Anchor:  a,
						Message: fmt.Sprintf("It is time for %s prayer", a),
						At:      target,
					},
				})
			}

			mark := target.Add(-cfg.WarnLead)
			if d := now.Sub(mark); d >= 0 && d <= cfg.WarnWindow {
				out = append(out, occurrence{
					key: fmt.Sprintf("warn|%s@%s", a, dk),
					ev: sink.Event{
						ID:      "warn|" + string(a),
						Kind:    sink.KindWarning,
						Anchor:  a,
						Message: fmt.Sprintf("%s prayer in %s", a, cfg.WarnLead),
						At:      target,
					},
				})
			}
		}

		occs, _ := alarm.ResolveDay(tt, rules, day)
		for _, o := range occs {
			if d := now.Sub(o.At); d >= -cfg.CustomTolerance && d <= cfg.CustomTolerance {
				msg := o.Rule.Message
				if msg == "" {
					msg = fmt.Sprintf("Alarm for %s", o.Rule.Anchor)
				}
				out = append(out, occurrence{
					key: fmt.Sprintf("custom|%s@%s", o.Rule.ID, dk),
					ev: sink.Event{
						ID:      "custom|" + o.Rule.ID,
						Kind:    sink.KindCustom,
						Anchor:  o.Rule.Anchor,
						Message: msg,
						At:      o.At,
					},
				})
			}
		}
	}
	return out
}

// fire delivers one occurrence to every sink. Sink failures are logged
// and published; the ledger entry stands either way.
func (s *Service) fire(ctx context.Context, occ occurrence, persist bool) {
	s.log.Info("firing event",
		logx.String("key", occ.key),
		logx.String("kind", string(occ.ev.Kind)),
		logx.Time("at", occ.ev.At))

	for _, snk := range s.sinks {
		if err := snk.Deliver(ctx, occ.ev); err != nil {
			s.log.Error("sink delivery failed",
				logx.String("sink", snk.Name()),
				logx.String("key", occ.key),
				logx.Err(err))
			if s.bus != nil {
				s.bus.Publish(eventbus.Event{
					Type: eventbus.TypeSinkFailed,
					Time: time.Now(),
					Data: map[string]any{"sink": snk.Name(), "key": occ.key, "error": err.Error()},
				})
			}
		}
	}

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypeFired,
			Time: time.Now(),
			Data: map[string]any{"key": occ.key, "kind": string(occ.ev.Kind)},
		})
	}

	if persist && s.store != nil {
		if err := s.store.MarkFired(ctx, occ.key, occ.ev.At); err != nil {
			s.log.Warn("ledger persist failed", logx.String("key", occ.key), logx.Err(err))
		}
	}
}

// pruneLedger drops keys dated before yesterday.
func (s *Service) pruneLedger(now time.Time) {
	floor := prayer.DateKey(now.AddDate(0, 0, -1))
	s.mu.Lock()
	for k := range s.ledger {
		for i := len(k) - 1; i >= 0; i-- {
			if k[i] == '@' {
				if k[i+1:] < floor {
					delete(s.ledger, k)
				}
				break
			}
		}
	}
	s.mu.Unlock()
}
