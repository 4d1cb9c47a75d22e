// Package telegram delivers dispatched events to a Telegram chat.
//
// The sink is send-only: no poller, no handlers. Deliver enqueues and
// returns immediately so the dispatch loop never blocks on the Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/achrafouajid/noor-daily/internal/sink"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64
}

type Sink struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	queue chan sink.Event

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(cfg Config, log logx.Logger) (*Sink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{
		cfg:   cfg,
		log:   log.With(logx.String("svc", "sink.telegram")),
		bot:   b,
		queue: make(chan sink.Event, 16),
	}, nil
}

func (s *Sink) Name() string { return "telegram" }

// Start launches the send worker.
func (s *Sink) Start(ctx context.Context) error {
	_ = ctx
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.worker(runCtx)
	return nil
}

func (s *Sink) Stop(ctx context.Context) error {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return nil
	}
	s.running = false
	cancel, done := s.cancel, s.done
	s.runMu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver enqueues the event. A full queue fails fast; the dispatch
// loop treats that as any other sink failure.
func (s *Sink) Deliver(_ context.Context, ev sink.Event) error {
	select {
	case s.queue <- ev:
		return nil
	default:
		return errors.New("telegram queue full")
	}
}

// SendText sends raw text to an arbitrary chat. It exists so the logger
// can reuse this bot for its telegram writer.
func (s *Sink) SendText(ctx context.Context, chatID int64, text string) error {
	_ = ctx
	_, err := s.bot.Send(&tele.Chat{ID: chatID}, text)
	return err
}

func (s *Sink) worker(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			s.send(ctx, ev)
		}
	}
}

func (s *Sink) send(ctx context.Context, ev sink.Event) {
	text := formatMessage(ev)
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * 2 * time.Second):
			}
		}
		if _, err := s.bot.Send(&tele.Chat{ID: s.cfg.ChatID}, text); err != nil {
			lastErr = err
			continue
		}
		return
	}
	s.log.Error("telegram send failed", logx.String("id", ev.ID), logx.Err(lastErr))
}

func formatMessage(ev sink.Event) string {
	switch ev.Kind {
	case sink.KindAdhan:
		return fmt.Sprintf("🕌 %s", ev.Message)
	case sink.KindWarning:
		return fmt.Sprintf("⏳ %s", ev.Message)
	default:
		return fmt.Sprintf("🔔 %s", ev.Message)
	}
}
