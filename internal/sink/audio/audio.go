// Package audio plays a local adhan recording through the system audio
// device when an adhan event fires.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/achrafouajid/noor-daily/internal/sink"
	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

type Config struct {
	// File is a PCM WAV (16-bit LE) to play on adhan events.
	File string
}

type Sink struct {
	log logx.Logger

	format wavFormat
	pcm    []byte

	ctxOnce  sync.Once
	audioCtx *oto.Context
	ctxErr   error

	mu      sync.Mutex
	current *playback
}

func New(cfg Config, log logx.Logger) (*Sink, error) {
	if cfg.File == "" {
		return nil, errors.New("audio file is empty")
	}
	raw, err := os.ReadFile(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	format, pcm, err := parseWAV(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", cfg.File, err)
	}
	if format.BitDepth != 16 {
		return nil, fmt.Errorf("%s: only 16-bit PCM supported, got %d-bit", cfg.File, format.BitDepth)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sink{
		log:    log.With(logx.String("svc", "sink.audio")),
		format: format,
		pcm:    pcm,
	}, nil
}

func (s *Sink) Name() string { return "audio" }

// Deliver plays the recording for adhan events only. A new adhan cuts
// off any playback still running.
func (s *Sink) Deliver(_ context.Context, ev sink.Event) error {
	if ev.Kind != sink.KindAdhan {
		return nil
	}
	ctx, err := s.context()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.stop()
	}
	s.current = newPlayback(ctx, s.pcm)
	s.log.Debug("playback started", logx.String("anchor", string(ev.Anchor)))
	return nil
}

// Stop halts any playback in progress.
func (s *Sink) Stop(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.stop()
		s.current = nil
	}
	return nil
}

// context lazily opens the audio device. Opening it at New would block
// headless hosts that never fire an adhan locally.
func (s *Sink) context() (*oto.Context, error) {
	s.ctxOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   s.format.SampleRate,
			ChannelCount: s.format.Channels,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			s.ctxErr = err
			return
		}
		select {
		case <-ready:
		case <-time.After(10 * time.Second):
			s.ctxErr = errors.New("audio device not ready")
			return
		}
		s.audioCtx = ctx
	})
	if s.ctxErr != nil {
		return nil, s.ctxErr
	}
	return s.audioCtx, nil
}

type playback struct {
	stopOnce sync.Once
	stopCh   chan struct{}
}

func newPlayback(ctx *oto.Context, pcm []byte) *playback {
	p := &playback{stopCh: make(chan struct{})}
	go p.run(ctx, pcm)
	return p
}

func (p *playback) run(ctx *oto.Context, pcm []byte) {
	player := ctx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()
	for player.IsPlaying() {
		select {
		case <-p.stopCh:
			player.Pause()
			return
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (p *playback) stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}
