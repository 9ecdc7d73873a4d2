package audio

import (
	"encoding/binary"
	"fmt"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	cases := []struct {
		pcm        []byte
		sampleRate int
	}{
		{pcm: make([]byte, 3200), sampleRate: 16000},
		{pcm: []byte{0x01, 0x02}, sampleRate: 16000},
		{pcm: make([]byte, 96000), sampleRate: 48000},
	}
	for i, tc := range cases {
		t.Run(fmt.Sprintf("run_%d", i), func(t *testing.T) {
			wav := encodeWAV(tc.pcm, tc.sampleRate)
			if len(wav) != 44+len(tc.pcm) {
				t.Fatalf("expected %d bytes, got %d", 44+len(tc.pcm), len(wav))
			}
			if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
				t.Errorf("bad RIFF header: %q %q", wav[0:4], wav[8:12])
			}
			if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(tc.pcm)) {
				t.Errorf("bad chunk size: %d", got)
			}
			if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
				t.Errorf("expected mono, got %d channels", got)
			}
			if got := binary.LittleEndian.Uint32(wav[24:28]); got != uint32(tc.sampleRate) {
				t.Errorf("expected sample rate %d, got %d", tc.sampleRate, got)
			}
			// byte rate = sr * channels * bytes per sample
			if got := binary.LittleEndian.Uint32(wav[28:32]); got != uint32(tc.sampleRate*2) {
				t.Errorf("expected byte rate %d, got %d", tc.sampleRate*2, got)
			}
			if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
				t.Errorf("expected 16-bit samples, got %d", got)
			}
			if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(tc.pcm)) {
				t.Errorf("bad data size: %d", got)
			}
		})
	}
}
