package audio

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

type Mode int8

const (
	ModeNone Mode = iota
	ModePlayback
	ModeRecording
)

// ModeController owns the device's single audio path. Recording and playback
// configurations are mutually exclusive; transitions go through here so that
// the mode is always consistent with whoever holds a live recording or
// playback handle.
type ModeController struct {
	logger  *slog.Logger
	mu      sync.Mutex
	mode    Mode
	paAlive bool
}

func NewModeController(logger *slog.Logger) *ModeController {
	return &ModeController{logger: logger}
}

func (m *ModeController) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetPlaybackMode releases the capture path and leaves the speaker as the
// active device. Idempotent.
func (m *ModeController) SetPlaybackMode() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == ModePlayback {
		return nil
	}
	if m.paAlive {
		if err := portaudio.Terminate(); err != nil {
			// mic stays claimed; treat as fatal for the transition
			return fmt.Errorf("failed to release capture path: %w", err)
		}
		m.paAlive = false
	}
	m.mode = ModePlayback
	m.logger.Debug("audio mode set", "mode", "playback")
	return nil
}

// SetRecordingMode claims the capture path exclusively. Idempotent.
func (m *ModeController) SetRecordingMode() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == ModeRecording {
		return nil
	}
	if !m.paAlive {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init failed: %w", err)
		}
		m.paAlive = true
	}
	m.mode = ModeRecording
	m.logger.Debug("audio mode set", "mode", "recording")
	return nil
}
