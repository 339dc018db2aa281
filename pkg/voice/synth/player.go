package synth

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoSink plays 16-bit mono PCM through the default audio device.
type OtoSink struct {
	mu         sync.Mutex
	ctx        *oto.Context
	current    *oto.Player
	volume     float64
	sampleRate int
}

func NewOtoSink(sampleRate int) (*OtoSink, error) {
	s := &OtoSink{volume: 1.0, sampleRate: sampleRate}
	if err := s.rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *OtoSink) rebuild() error {
	op := &oto.NewContextOptions{
		SampleRate:   s.sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("audio context: %w", err)
	}
	<-ready
	s.ctx = otoCtx
	return nil
}

func (s *OtoSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	pcm = stripRIFF(pcm)
	if len(pcm) == 0 {
		return nil
	}
	if sampleRate != 0 && sampleRate != s.sampleRate {
		return fmt.Errorf("sample rate %d does not match output %d", sampleRate, s.sampleRate)
	}

	s.mu.Lock()
	p := s.ctx.NewPlayer(bytes.NewReader(pcm))
	p.SetVolume(s.volume)
	s.current = p
	s.mu.Unlock()

	p.Play()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			p.Close()
			s.clearCurrent(p)
			return ctx.Err()
		case <-tick.C:
		}
	}

	err := p.Close()
	s.clearCurrent(p)
	return err
}

func (s *OtoSink) clearCurrent(p *oto.Player) {
	s.mu.Lock()
	if s.current == p {
		s.current = nil
	}
	s.mu.Unlock()
}

func (s *OtoSink) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	if s.current != nil {
		s.current.SetVolume(v)
	}
}

func (s *OtoSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Pause()
	}
}

func (s *OtoSink) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Play()
	}
}

func (s *OtoSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
}

func (s *OtoSink) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	return s.rebuild()
}

func (s *OtoSink) Close() error {
	s.Stop()
	return nil
}

// stripRIFF returns the raw sample bytes, skipping a WAV container header
// when one is present. Providers configured for raw PCM pass through as is.
func stripRIFF(b []byte) []byte {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return b
	}
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		off += 8
		if id == "data" {
			end := off + size
			if end > len(b) {
				end = len(b)
			}
			return b[off:end]
		}
		off += size
	}
	return nil
}
