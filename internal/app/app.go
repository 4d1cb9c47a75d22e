// Package app wires configuration, logging, storage, the dispatch
// engine, the timetable refresher, the sinks and the HTTP API into one
// lifecycle.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/achrafouajid/noor-daily/internal/alarm"
	"github.com/achrafouajid/noor-daily/internal/config"
	"github.com/achrafouajid/noor-daily/internal/engine"
	"github.com/achrafouajid/noor-daily/internal/eventbus"
	"github.com/achrafouajid/noor-daily/internal/httpapi"
	"github.com/achrafouajid/noor-daily/internal/provider/aladhan"
	rtsup "github.com/achrafouajid/noor-daily/internal/runtime/supervisor"
	"github.com/achrafouajid/noor-daily/internal/sink"
	audiosink "github.com/achrafouajid/noor-daily/internal/sink/audio"
	tgsink "github.com/achrafouajid/noor-daily/internal/sink/telegram"
	"github.com/achrafouajid/noor-daily/internal/storage"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	rules     *alarm.Rules
	engine    *engine.Service
	refresher *aladhan.Refresher

	tgSink    *tgsink.Sink
	audioSink *audiosink.Sink

	httpSrv *httpapi.Server
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole("INFO")

	// The telegram sink doubles as the logger's telegram transport, so
	// it is built before the logging service.
	var tg *tgsink.Sink
	if cfg.Sinks.Telegram.Enabled {
		tg, err = tgsink.New(tgsink.Config{
			Token:  cfg.Sinks.Telegram.Token,
			ChatID: cfg.Sinks.Telegram.ChatID,
		}, bootLog)
		if err != nil {
			return nil, fmt.Errorf("telegram sink: %w", err)
		}
	}

	var sender logx.TelegramSender
	if tg != nil {
		sender = tg
	}
	logSvc, log := logx.New(mapLoggingConfig(cfg), sender)
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	var store storage.Store
	if cfg.Storage != nil {
		sc, err := mapStorageConfig(cfg)
		if err != nil {
			return nil, err
		}
		store, err = storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		if store != nil {
			log.Info("storage enabled", logx.String("driver", sc.Driver))
		}
	}

	rules := alarm.NewRules(store, bus, log)

	engCfg, err := mapEngineConfig(cfg)
	if err != nil {
		return nil, err
	}

	sinks := make([]sink.Sink, 0, 2)
	if tg != nil {
		sinks = append(sinks, tg)
	}
	var au *audiosink.Sink
	if cfg.Sinks.Audio.Enabled {
		au, err = audiosink.New(audiosink.Config{File: cfg.Sinks.Audio.File}, log)
		if err != nil {
			return nil, fmt.Errorf("audio sink: %w", err)
		}
		sinks = append(sinks, au)
	}

	eng := engine.New(engCfg, sinks, store, bus, log.With(logx.String("comp", "engine")))

	provTimeout, err := config.ParseDurationOrDefault("provider.timeout", cfg.Provider.Timeout, 0)
	if err != nil {
		return nil, err
	}
	client := aladhan.NewClient(aladhan.ClientConfig{
		BaseURL: cfg.Provider.BaseURL,
		Method:  cfg.Provider.Method,
		Timeout: provTimeout,
	}, log)
	refresher := aladhan.NewRefresher(mapRefresherConfig(cfg), client, eng, bus,
		log.With(logx.String("comp", "refresher")))

	var httpSrv *httpapi.Server
	if cfg.HTTP.Enabled {
		httpSrv = httpapi.New(httpapi.Config{Addr: cfg.HTTP.Addr}, eng, rules,
			log.With(logx.String("comp", "httpapi")))
	}

	return &App{
		cfgPath:   cfgPath,
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       bus,
		store:     store,
		rules:     rules,
		engine:    eng,
		refresher: refresher,
		tgSink:    tg,
		audioSink: au,
		httpSrv:   httpSrv,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validate(cfg)
	})

	if err := a.rules.Load(ctx); err != nil {
		// Run with an empty rule set rather than refusing to start.
		a.log.Warn("alarm rules unavailable", logx.Err(err))
	}
	a.engine.SetRules(a.rules.Snapshot())

	if a.tgSink != nil {
		if err := a.tgSink.Start(a.sup.Context()); err != nil {
			return err
		}
	}
	if err := a.engine.Start(a.sup.Context()); err != nil {
		return err
	}
	if err := a.refresher.Start(a.sup.Context()); err != nil {
		return err
	}
	if a.httpSrv != nil {
		if err := a.httpSrv.Start(a.sup.Context()); err != nil {
			return err
		}
	}

	// Push rule edits into the running engine.
	events, unsubEvents := a.bus.Subscribe(64)
	a.sup.Go0("eventbus.fanout", func(c context.Context) {
		defer unsubEvents()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				if e.Type == eventbus.TypeAlarmsChanged {
					a.engine.SetRules(a.rules.Snapshot())
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	// Hot reload: validated configs arrive via the manager's watcher.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts, keeping only the newest config.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(c, newCfg)
			}
		}
	})

	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// applyConfig pushes a validated config into the live services.
// Storage and HTTP changes need a restart; everything else applies live.
func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))

	if engCfg, err := mapEngineConfig(cfg); err != nil {
		a.log.Warn("invalid engine config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(engCfg)
	}

	if err := a.refresher.Apply(ctx, mapRefresherConfig(cfg)); err != nil {
		a.log.Warn("refresher config apply failed", logx.Err(err))
	}

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping")
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		if err := fn(stepCtx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
	}

	if a.httpSrv != nil {
		step("httpapi", 2*time.Second, a.httpSrv.Stop)
	}
	step("refresher", 2*time.Second, a.refresher.Stop)
	step("engine", 2*time.Second, a.engine.Stop)
	if a.audioSink != nil {
		step("sink.audio", time.Second, a.audioSink.Stop)
	}
	if a.tgSink != nil {
		step("sink.telegram", 2*time.Second, a.tgSink.Stop)
	}
	if a.store != nil {
		step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	}
	step("supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
