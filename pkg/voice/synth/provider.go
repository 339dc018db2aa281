package synth

import (
	"context"
	"time"
)

// WordBoundary is one per-token timing event from the synthesizer. Offsets
// are measured from the start of the utterance's audio. Not every engine or
// voice reports offsets; HasOffset is false when the timing is unknown.
type WordBoundary struct {
	Token     string
	Offset    time.Duration
	HasOffset bool
}

// Synthesis is the result of one text-to-speech request: 16-bit little
// endian mono PCM plus whatever word timing the provider could supply.
type Synthesis struct {
	PCM        []byte
	SampleRate int
	Words      []WordBoundary
}

// Synthesizer converts text to speech audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) (*Synthesis, error)
}

// Observer receives utterance lifecycle and per-token timing events.
// Callbacks run on the engine's playback goroutine and must not block.
type Observer interface {
	OnSpeechStart(utteranceID, text string)
	OnWord(utteranceID, token string, offset time.Duration, hasOffset bool)
	OnSpeechEnd(utteranceID string)
}

// AudioSink is the output half of the engine: something that can play PCM
// at a volume. The production sink wraps an oto context; tests use a fake.
type AudioSink interface {
	// Play blocks until the audio finishes or ctx is cancelled.
	Play(ctx context.Context, pcm []byte, sampleRate int) error
	SetVolume(v float64)
	Pause()
	Resume()
	// Stop interrupts the current playback, if any.
	Stop()
	// Reset tears down and rebuilds the output pipeline.
	Reset() error
	Close() error
}
