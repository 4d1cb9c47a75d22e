package alarm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/achrafouajid/noor-daily/internal/eventbus"
	"github.com/achrafouajid/noor-daily/internal/storage"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

// Rules owns the live rule set. Reads are cheap snapshots; writes go
// through the optional store first so a crash never loses a committed
// rule.
type Rules struct {
	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store

	mu    sync.RWMutex
	rules map[string]Rule
}

func NewRules(store storage.Store, bus eventbus.Bus, log logx.Logger) *Rules {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Rules{
		log:   log.With(logx.String("svc", "alarms")),
		bus:   bus,
		store: store,
		rules: map[string]Rule{},
	}
}

// Load replaces the in-memory set with the stored one. A nil store
// leaves the set empty.
func (s *Rules) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	recs, err := s.store.ListAlarms(ctx)
	if err != nil {
		return fmt.Errorf("load alarm rules: %w", err)
	}
	next := make(map[string]Rule, len(recs))
	for _, rec := range recs {
		r := fromRecord(rec)
		if err := r.Validate(); err != nil {
			s.log.Warn("skipping stored alarm rule", logx.Err(err))
			continue
		}
		next[r.ID] = r
	}
	s.mu.Lock()
	s.rules = next
	s.mu.Unlock()
	s.log.Info("alarm rules loaded", logx.Int("count", len(next)))
	return nil
}

// Snapshot returns the rules sorted by ID.
func (s *Rules) Snapshot() []Rule {
	s.mu.RLock()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the rule with the given ID.
func (s *Rules) Get(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	return r, ok
}

// Put creates or updates a rule. An empty ID mints a new one. The
// stored rule is returned.
func (s *Rules) Put(ctx context.Context, r Rule) (Rule, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	if s.store != nil {
		if err := s.store.PutAlarm(ctx, r.toRecord()); err != nil {
			return Rule{}, fmt.Errorf("persist alarm rule %s: %w", r.ID, err)
		}
	}
	s.mu.Lock()
	s.rules[r.ID] = r
	s.mu.Unlock()
	s.publishChanged()
	return r, nil
}

// Delete removes a rule. Deleting an unknown ID is a no-op.
func (s *Rules) Delete(ctx context.Context, id string) error {
	if s.store != nil {
		if err := s.store.DeleteAlarm(ctx, id); err != nil {
			return fmt.Errorf("delete alarm rule %s: %w", id, err)
		}
	}
	s.mu.Lock()
	_, existed := s.rules[id]
	delete(s.rules, id)
	s.mu.Unlock()
	if existed {
		s.publishChanged()
	}
	return nil
}

func (s *Rules) publishChanged() {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		Type: eventbus.TypeAlarmsChanged,
		Time: time.Now(),
	})
}
