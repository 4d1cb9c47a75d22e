package aladhan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/achrafouajid/noor-daily/internal/eventbus"
	"github.com/achrafouajid/noor-daily/internal/prayer"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

const defaultRefreshCron = "30 0 * * *"

// fallback when no location is configured (Mecca).
const (
	fallbackLat   = 21.4225
	fallbackLon   = 39.8262
	fallbackLabel = "Mecca"
)

// TableSink receives freshly built timetables.
type TableSink interface {
	SetTimeTable(tt *prayer.TimeTable)
}

type RefresherConfig struct {
	Latitude  float64
	Longitude float64
	Label     string
	// Cron spec for the nightly refresh, in the provider timezone.
	RefreshCron string
}

// Refresher keeps the timetable current. It fetches on start, on the
// cron schedule, and whenever the local date rolls over (covers resume
// from suspend, where cron entries may be missed).
type Refresher struct {
	log    logx.Logger
	client *Client
	sink   TableSink
	bus    eventbus.Bus

	mu   sync.Mutex
	cfg  RefresherConfig
	cron *cron.Cron

	lastDateKey string
	lastLoc     *time.Location

	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(cfg RefresherConfig, client *Client, sink TableSink, bus eventbus.Bus, log logx.Logger) *Refresher {
	if log.IsZero() {
		log = logx.Nop()
	}
	normalizeRefresherConfig(&cfg)
	return &Refresher{
		log:    log.With(logx.String("svc", "refresher")),
		client: client,
		sink:   sink,
		bus:    bus,
		cfg:    cfg,
	}
}

func normalizeRefresherConfig(cfg *RefresherConfig) {
	if cfg.RefreshCron == "" {
		cfg.RefreshCron = defaultRefreshCron
	}
	if cfg.Latitude == 0 && cfg.Longitude == 0 {
		cfg.Latitude = fallbackLat
		cfg.Longitude = fallbackLon
		if cfg.Label == "" {
			cfg.Label = fallbackLabel
		}
	}
}

// Start performs the initial fetch, then launches the cron schedule and
// the date rollover watcher. The initial fetch is retried in the
// background if it fails, so a dead network at boot does not abort
// startup.
func (r *Refresher) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	ok := false
	if err := r.Refresh(ctx); err != nil {
		r.log.Warn("initial timetable fetch failed, will retry", logx.Err(err))
	} else {
		ok = true
	}

	c := cron.New()
	if _, err := c.AddFunc(r.cfg.RefreshCron, func() {
		if err := r.Refresh(runCtx); err != nil {
			r.log.Warn("scheduled timetable refresh failed", logx.Err(err))
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("refresh cron %q: %w", r.cfg.RefreshCron, err)
	}
	c.Start()
	r.mu.Lock()
	r.cron = c
	r.mu.Unlock()

	go r.watch(runCtx, !ok)
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c != nil {
		stopped := c.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.done != nil {
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Apply swaps the location and schedule. A changed location triggers an
// immediate refetch.
func (r *Refresher) Apply(ctx context.Context, cfg RefresherConfig) error {
	normalizeRefresherConfig(&cfg)
	r.mu.Lock()
	prev := r.cfg
	r.cfg = cfg
	old := r.cron
	r.mu.Unlock()

	if cfg.RefreshCron != prev.RefreshCron && old != nil {
		// robfig cron has no entry replacement; swap the whole scheduler.
		nc := cron.New()
		if _, err := nc.AddFunc(cfg.RefreshCron, func() {
			if err := r.Refresh(context.Background()); err != nil {
				r.log.Warn("scheduled timetable refresh failed", logx.Err(err))
			}
		}); err != nil {
			return fmt.Errorf("refresh cron %q: %w", cfg.RefreshCron, err)
		}
		old.Stop()
		nc.Start()
		r.mu.Lock()
		r.cron = nc
		r.mu.Unlock()
	}

	if cfg.Latitude != prev.Latitude || cfg.Longitude != prev.Longitude {
		if err := r.Refresh(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Refresh fetches today's timings and swaps the engine table. A table
// without Fajr is rejected wholesale because next-prayer resolution
// needs tomorrow's Fajr as the rollover target.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	cfg := r.cfg
	r.mu.Unlock()

	now := time.Now()
	raw, err := r.client.FetchDay(ctx, now, cfg.Latitude, cfg.Longitude)
	if err != nil {
		return err
	}

	day := now
	if loc, err := time.LoadLocation(raw.Timezone); err == nil {
		day = now.In(loc)
	}
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())

	label := cfg.Label
	if label == "" {
		label = raw.Timezone
	}
	tt, bad := prayer.NewTimeTable(day, label, raw.Times)
	for a, perr := range bad {
		r.log.Warn("unusable anchor in provider response",
			logx.String("anchor", string(a)), logx.Err(perr))
	}
	if _, ok := tt.Time(prayer.Fajr); !ok {
		return fmt.Errorf("provider response missing usable Fajr")
	}

	r.sink.SetTimeTable(tt)
	r.mu.Lock()
	r.lastDateKey = prayer.DateKey(day)
	r.lastLoc = day.Location()
	r.mu.Unlock()

	r.log.Info("timetable refreshed",
		logx.String("for", prayer.DateKey(day)),
		logx.String("locality", label))
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{
			Type: eventbus.TypeTimetableUpdated,
			Time: time.Now(),
			Data: map[string]any{"for": prayer.DateKey(day), "locality": label},
		})
	}
	return nil
}

// stale reports whether the table's calendar day has passed. The check
// runs in the table's own zone; the host clock may sit on a different
// calendar day for hours around midnight, and that alone must not
// trigger a refetch.
func (r *Refresher) stale(now time.Time) bool {
	r.mu.Lock()
	last := r.lastDateKey
	loc := r.lastLoc
	r.mu.Unlock()
	if last == "" {
		return false
	}
	if loc != nil {
		now = now.In(loc)
	}
	return prayer.DateKey(now) != last
}

// watch retries a failed initial fetch and refetches when the table's
// date changes under us (suspend/resume, missed cron run).
func (r *Refresher) watch(ctx context.Context, needInitial bool) {
	defer close(r.done)

	retry := time.Minute
	tick := time.NewTicker(30 * time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		if !needInitial && !r.stale(time.Now()) {
			continue
		}

		if err := r.Refresh(ctx); err != nil {
			r.log.Warn("timetable refresh failed", logx.Err(err),
				logx.Duration("retry_in", retry))
			select {
			case <-ctx.Done():
				return
			case <-time.After(retry):
			}
			if retry < 15*time.Minute {
				retry *= 2
			}
			continue
		}
		needInitial = false
		retry = time.Minute
	}
}
