package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// MaxRecordTime bounds a single listening turn; the recorder stops itself
// after this much audio even if the user never signals they are done.
const MaxRecordTime = 10 * time.Second

// Recorder opens mono 16-bit capture sessions. Only one Recording may be
// live at a time; the conversation loop guarantees that by sequencing.
type Recorder struct {
	logger     *slog.Logger
	sampleRate int
}

func NewRecorder(logger *slog.Logger, sampleRate int) *Recorder {
	if sampleRate == 0 {
		sampleRate = 16000
	}
	return &Recorder{logger: logger, sampleRate: sampleRate}
}

// Recording is one in-flight capture. Done is closed once the capture loop
// has drained and the stream is released, whether it ended by the auto-stop
// timer or a manual Stop/Discard.
type Recording struct {
	logger     *slog.Logger
	stream     *portaudio.Stream
	sampleRate int
	buf        bytes.Buffer
	timer      *time.Timer
	quitOnce   sync.Once
	quit       chan struct{}
	done       chan struct{}
}

func (r *Recorder) Start() (*Recording, error) {
	in := make([]int16, 512)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.sampleRate), len(in), in)
	if err != nil {
		return nil, fmt.Errorf("failed to open microphone: %w", err)
	}
	if err := stream.Start(); err != nil {
		if closeErr := stream.Close(); closeErr != nil {
			r.logger.Error("failed to close mic stream", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to start microphone: %w", err)
	}
	rec := &Recording{
		logger:     r.logger,
		stream:     stream,
		sampleRate: r.sampleRate,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	rec.timer = time.AfterFunc(MaxRecordTime, rec.halt)
	go rec.captureLoop(in)
	return rec, nil
}

func (rec *Recording) captureLoop(in []int16) {
	defer func() {
		if err := rec.stream.Stop(); err != nil {
			rec.logger.Debug("failed to stop mic stream", "error", err)
		}
		if err := rec.stream.Close(); err != nil {
			rec.logger.Debug("failed to close mic stream", "error", err)
		}
		close(rec.done)
	}()
	for {
		select {
		case <-rec.quit:
			return
		default:
		}
		if err := rec.stream.Read(); err != nil {
			rec.logger.Error("reading mic stream", "error", err)
			rec.halt()
			return
		}
		if err := binary.Write(&rec.buf, binary.LittleEndian, in); err != nil {
			rec.logger.Error("writing to audio buffer", "error", err)
			rec.halt()
			return
		}
	}
}

func (rec *Recording) halt() {
	rec.quitOnce.Do(func() {
		rec.timer.Stop()
		close(rec.quit)
	})
}

// Done signals that capture has finished, typically via the auto-stop timer.
func (rec *Recording) Done() <-chan struct{} {
	return rec.done
}

// Stop ends the capture and returns the recorded audio as a WAV blob.
// Safe to call after auto-stop; idempotent.
func (rec *Recording) Stop() ([]byte, error) {
	rec.halt()
	<-rec.done
	if rec.buf.Len() == 0 {
		return nil, fmt.Errorf("no audio captured")
	}
	return encodeWAV(rec.buf.Bytes(), rec.sampleRate), nil
}

// Discard ends the capture and drops whatever was recorded.
func (rec *Recording) Discard() {
	rec.halt()
	<-rec.done
	rec.buf.Reset()
}

// encodeWAV prefixes raw little-endian 16-bit mono PCM with a RIFF header.
func encodeWAV(pcm []byte, sampleRate int) []byte {
	dataSize := len(pcm)
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate)*1*(16/8))
	binary.LittleEndian.PutUint16(header[32:34], 1*(16/8))
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	return append(header, pcm...)
}
