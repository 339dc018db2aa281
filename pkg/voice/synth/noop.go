package synth

import (
	"context"
	"time"

	"ai-waiter-service/pkg/utils"
)

// DiscardSink drops audio on the floor. Used when no output device is
// available; the reveal pipeline still runs off the word events.
type DiscardSink struct{}

func (DiscardSink) Play(ctx context.Context, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	// Sleep out the audio duration so utterances still pace the queue.
	dur := time.Duration(len(pcm)/2) * time.Second / time.Duration(sampleRate)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(dur):
		return nil
	}
}

func (DiscardSink) SetVolume(float64) {}
func (DiscardSink) Pause()            {}
func (DiscardSink) Resume()           {}
func (DiscardSink) Stop()             {}
func (DiscardSink) Reset() error      { return nil }
func (DiscardSink) Close() error      { return nil }

// NoopSynthesizer produces silence with evenly spaced word boundaries.
// Used when no TTS credentials are configured, and in tests.
type NoopSynthesizer struct {
	SampleRate int
	// PerWord is the synthetic spacing between word boundaries.
	PerWord time.Duration
}

func NewNoopSynthesizer() *NoopSynthesizer {
	return &NoopSynthesizer{SampleRate: 16000, PerWord: 150 * time.Millisecond}
}

func (n *NoopSynthesizer) Synthesize(_ context.Context, text, _ string) (*Synthesis, error) {
	tokens := utils.Tokenize(text)

	words := make([]WordBoundary, 0, len(tokens))
	for i, tok := range tokens {
		words = append(words, WordBoundary{
			Token:     tok,
			Offset:    time.Duration(i) * n.PerWord,
			HasOffset: true,
		})
	}

	// Enough silence to cover the synthetic word spacing.
	dur := time.Duration(len(tokens)) * n.PerWord
	samples := int(float64(n.SampleRate) * dur.Seconds())
	return &Synthesis{
		PCM:        make([]byte, samples*2),
		SampleRate: n.SampleRate,
		Words:      words,
	}, nil
}
