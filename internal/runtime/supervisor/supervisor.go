package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

// Supervisor manages goroutines tied to a shared context.
// - Named goroutines (for logging/debug)
// - Panic recovery
// - Optional cancel-on-first-error
// - Graceful stop with timeout-aware waiting
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	// Counters are best-effort operational metrics.
	started uint64
	active  int64

	log         logx.Logger
	cancelOnErr bool
	errOnce     sync.Once
	firstErr    atomic.Value // stores error
	doneOnce    sync.Once
	doneCh      chan struct{}
	wg          sync.WaitGroup
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError makes the first non-nil error from any goroutine cancel
// the supervisor context.
func WithCancelOnError(enabled bool) Option {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func New(parent context.Context, opts ...Option) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for goroutines.
func (s *Supervisor) Cancel() { s.cancel() }

func (s *Supervisor) Err() error {
	v := s.firstErr.Load()
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}

// Active reports the number of goroutines currently running under this
// supervisor. Operational signal only, not a synchronization primitive.
func (s *Supervisor) Active() int64 { return atomic.LoadInt64(&s.active) }

func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	atomic.AddUint64(&s.started, 1)
	atomic.AddInt64(&s.active, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.active, -1)

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v", name, r)
				if !s.log.IsZero() {
					s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
				s.setErr(err)
				if s.cancelOnErr {
					s.cancel()
				}
			}
		}()

		if !s.log.IsZero() {
			s.log.Debug("goroutine started", logx.String("name", name))
		}
		err := fn(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.setErr(fmt.Errorf("%s: %w", name, err))
			if s.cancelOnErr {
				s.cancel()
			}
		}
		if !s.log.IsZero() {
			s.log.Debug("goroutine stopped", logx.String("name", name))
		}
	}()
}

func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// GoRestart runs fn and restarts it on error/panic using jittered exponential
// backoff until ctx is canceled. Intended for long-running loops (pollers,
// watchers) where transient failures should self-heal without taking down
// the process. A nil return is a clean stop.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	const (
		minBackoff = 250 * time.Millisecond
		maxBackoff = 30 * time.Second
	)
	s.Go0(name+".restart", func(ctx context.Context) {
		backoff := minBackoff
		for {
			if ctx.Err() != nil {
				return
			}

			startedAt := time.Now()
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						if !s.log.IsZero() {
							s.log.Error("goroutine panicked (restart)", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
						}
						err = fmt.Errorf("panic: %v", r)
					}
				}()
				return fn(ctx)
			}()

			// Cancellation during shutdown is a clean stop, not a failure.
			if ctx.Err() != nil || errors.Is(err, context.Canceled) || err == nil {
				return
			}

			// A long successful run resets backoff so rare failures don't
			// accumulate long restart delays.
			if time.Since(startedAt) >= 30*time.Second {
				backoff = minBackoff
			}

			wait := backoff
			j := time.Duration(int64(wait) / 5)
			if j > 0 {
				wait += time.Duration(time.Now().UnixNano() % int64(j+1))
			}
			if !s.log.IsZero() {
				s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", wait), logx.Any("err", err))
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	})
}

func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}

func (s *Supervisor) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() { s.firstErr.Store(err) })
}
