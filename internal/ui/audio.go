package ui

import (
	"encoding/binary"
	"time"

	"github.com/EvezArt/metarom-go/internal/emu"
)

// apuStream adapts the APU sample ring to the io.Reader the ebiten audio
// player consumes, converting stereo int16 frames to little-endian bytes.
type apuStream struct {
	m     *emu.Machine
	muted *bool

	underruns int
}

func (s *apuStream) Read(p []byte) (int, error) {
	if len(p) < 4 || s == nil || s.m == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	if s.muted != nil && *s.muted {
		for i := range p {
			p[i] = 0
		}
		time.Sleep(5 * time.Millisecond)
		return len(p), nil
	}

	maxFrames := len(p) / 4
	if maxFrames > 2048 {
		maxFrames = 2048 // ~42ms at 48kHz; avoid over-buffering
	}

	// Wait briefly for samples rather than padding immediately.
	deadline := time.Now().Add(15 * time.Millisecond)
	for s.m.APUBuffered() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	want := s.m.APUBuffered()
	if want > maxFrames {
		want = maxFrames
	}
	if want == 0 {
		// Underrun: return a short silence chunk to keep the player fed.
		n := 256
		if n > maxFrames {
			n = maxFrames
		}
		for i := 0; i < n*4; i++ {
			p[i] = 0
		}
		s.underruns++
		return n * 4, nil
	}

	frames := s.m.APUPull(want)
	i := 0
	for j := 0; j+1 < len(frames) && i+3 < len(p); j += 2 {
		binary.LittleEndian.PutUint16(p[i:], uint16(frames[j]))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(frames[j+1]))
		i += 4
	}
	return i, nil
}
