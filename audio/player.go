package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// Player plays one synthesized utterance at a time. Audio bytes go through a
// scratch file that is removed once playback finishes or is cancelled.
type Player struct {
	logger  *slog.Logger
	mu      sync.Mutex
	current *playback
}

type playback struct {
	ctrl *beep.Ctrl
	done chan struct{}
	once sync.Once
}

func (pb *playback) finish() {
	pb.once.Do(func() { close(pb.done) })
}

func NewPlayer(logger *slog.Logger) *Player {
	return &Player{logger: logger}
}

// Play writes audio to a temp file, plays it to completion and cleans up.
// It returns when playback finishes naturally, is cancelled, or ctx ends.
func (p *Player) Play(ctx context.Context, audio []byte) error {
	p.Cancel() // prior in-flight playback is always released first
	tmp, err := os.CreateTemp("", "souschef-tts-*.mp3")
	if err != nil {
		return fmt.Errorf("failed to create scratch file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			p.logger.Debug("failed to remove scratch file", "error", err, "file", tmp.Name())
		}
	}()
	defer tmp.Close()
	if _, err := tmp.Write(audio); err != nil {
		return fmt.Errorf("failed to write scratch file: %w", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to rewind scratch file: %w", err)
	}
	streamer, format, err := mp3.Decode(tmp)
	if err != nil {
		return fmt.Errorf("mp3 decode failed: %w", err)
	}
	defer streamer.Close()
	// speaker complains when initialized more than once; debug-log and move on
	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		p.logger.Debug("failed to init speaker", "error", err)
	}
	pb := &playback{done: make(chan struct{})}
	pb.ctrl = &beep.Ctrl{Streamer: beep.Seq(streamer, beep.Callback(pb.finish)), Paused: false}
	p.mu.Lock()
	p.current = pb
	p.mu.Unlock()
	speaker.Play(pb.ctrl)
	select {
	case <-pb.done:
	case <-ctx.Done():
		p.Cancel()
		return ctx.Err()
	}
	p.mu.Lock()
	if p.current == pb {
		p.current = nil
	}
	p.mu.Unlock()
	return nil
}

// Cancel stops in-flight playback immediately, if any.
func (p *Player) Cancel() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()
	if pb == nil {
		return
	}
	speaker.Lock()
	pb.ctrl.Streamer = nil
	speaker.Unlock()
	pb.finish()
}
