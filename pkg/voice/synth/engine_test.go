package synth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-waiter-service/internal/pkg/logger"
)

type fakeSink struct {
	mu      sync.Mutex
	volume  float64
	history []float64
	played  int
}

func newFakeSink() *fakeSink { return &fakeSink{volume: 1} }

func (f *fakeSink) Play(ctx context.Context, _ []byte, _ int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	f.mu.Lock()
	f.played++
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) SetVolume(v float64) {
	f.mu.Lock()
	f.volume = v
	f.history = append(f.history, v)
	f.mu.Unlock()
}

func (f *fakeSink) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *fakeSink) Pause()       {}
func (f *fakeSink) Resume()      {}
func (f *fakeSink) Stop()        {}
func (f *fakeSink) Reset() error { return nil }
func (f *fakeSink) Close() error { return nil }

type recorder struct {
	mu     sync.Mutex
	starts []string
	words  []string
	ends   int
}

func (r *recorder) OnSpeechStart(_, text string) {
	r.mu.Lock()
	r.starts = append(r.starts, text)
	r.mu.Unlock()
}

func (r *recorder) OnWord(_, token string, _ time.Duration, _ bool) {
	r.mu.Lock()
	r.words = append(r.words, token)
	r.mu.Unlock()
}

func (r *recorder) OnSpeechEnd(string) {
	r.mu.Lock()
	r.ends++
	r.mu.Unlock()
}

type failingSynth struct {
	inner Synthesizer
	fail  string
}

func (f *failingSynth) Synthesize(ctx context.Context, text, voice string) (*Synthesis, error) {
	if text == f.fail {
		return nil, errors.New("boom")
	}
	return f.inner.Synthesize(ctx, text, voice)
}

func newTestEngine(s Synthesizer) (*Engine, *fakeSink) {
	sink := newFakeSink()
	return NewEngine(s, sink, "test-voice", logger.Noop{}), sink
}

func TestDuckUnduckRestoresExactVolume(t *testing.T) {
	for _, v := range []float64{0, 0.05, 0.2, 0.37, 0.5, 1} {
		e, _ := newTestEngine(NewNoopSynthesizer())
		e.SetVolume(v)
		e.Duck()
		e.Unduck()
		if got := e.Volume(); got != v {
			t.Errorf("volume %v: after duck/unduck got %v", v, got)
		}
	}
}

func TestDuckCapsLoudVolume(t *testing.T) {
	e, sink := newTestEngine(NewNoopSynthesizer())
	e.SetVolume(0.9)
	e.Duck()
	if got := sink.Volume(); got != duckVolume {
		t.Fatalf("ducked sink volume = %v, want %v", got, duckVolume)
	}
	e.Unduck()
	if got := sink.Volume(); got != 0.9 {
		t.Fatalf("restored sink volume = %v, want 0.9", got)
	}
}

func TestDuckDoesNotRaiseQuietVolume(t *testing.T) {
	e, sink := newTestEngine(NewNoopSynthesizer())
	e.SetVolume(0.1)
	e.Duck()
	if got := sink.Volume(); got != 0.1 {
		t.Fatalf("ducked sink volume = %v, want 0.1", got)
	}
}

func TestRepeatedDuckKeepsFirstSnapshot(t *testing.T) {
	e, _ := newTestEngine(NewNoopSynthesizer())
	e.SetVolume(0.8)
	e.Duck()
	e.Duck()
	e.Unduck()
	if got := e.Volume(); got != 0.8 {
		t.Fatalf("after double duck, volume = %v, want 0.8", got)
	}
}

func TestSetVolumeWhileDuckedUpdatesSnapshot(t *testing.T) {
	e, _ := newTestEngine(NewNoopSynthesizer())
	e.SetVolume(0.8)
	e.Duck()
	e.SetVolume(0.6)
	e.Unduck()
	if got := e.Volume(); got != 0.6 {
		t.Fatalf("after set-while-ducked, volume = %v, want 0.6", got)
	}
}

func TestSpeakPlaysSerially(t *testing.T) {
	e, _ := newTestEngine(NewNoopSynthesizer())
	rec := &recorder{}
	e.Subscribe(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	a := e.Speak("first line")
	b := e.Speak("second line")
	c := e.Speak("third line")
	for i, done := range []<-chan error{a, b, c} {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("utterance %d: %v", i, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("utterance %d never resolved", i)
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{"first line", "second line", "third line"}
	if len(rec.starts) != len(want) {
		t.Fatalf("got %d starts, want %d", len(rec.starts), len(want))
	}
	for i := range want {
		if rec.starts[i] != want[i] {
			t.Errorf("start %d = %q, want %q", i, rec.starts[i], want[i])
		}
	}
	if rec.ends != 3 {
		t.Errorf("got %d end events, want 3", rec.ends)
	}
}

func TestStopFlushesQueue(t *testing.T) {
	e, _ := newTestEngine(NewNoopSynthesizer())

	// No Run loop: both utterances sit in the queue.
	a := e.Speak("queued one")
	b := e.Speak("queued two")
	e.Stop()

	for i, done := range []<-chan error{a, b} {
		select {
		case err := <-done:
			if !errors.Is(err, ErrStopped) {
				t.Errorf("utterance %d resolved %v, want ErrStopped", i, err)
			}
		case <-time.After(time.Second):
			t.Fatalf("utterance %d not rejected", i)
		}
	}
}

func TestSynthesisErrorDoesNotPoisonQueue(t *testing.T) {
	e, _ := newTestEngine(&failingSynth{inner: NewNoopSynthesizer(), fail: "bad"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	bad := e.Speak("bad")
	good := e.Speak("still works")

	if err := <-bad; err == nil {
		t.Fatal("expected error from failing synthesis")
	}
	select {
	case err := <-good:
		if err != nil {
			t.Fatalf("follow-up utterance failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up utterance never played")
	}
}

func TestWordEventsFallBackToTokens(t *testing.T) {
	// Azure REST returns no boundaries; the engine must still emit one
	// event per token.
	e, _ := newTestEngine(&noBoundarySynth{})
	rec := &recorder{}
	e.Subscribe(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	if err := <-e.Speak("hello there friend"); err != nil {
		t.Fatal(err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{"hello", "there", "friend"}
	if len(rec.words) != len(want) {
		t.Fatalf("got %d word events, want %d", len(rec.words), len(want))
	}
	for i := range want {
		if rec.words[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, rec.words[i], want[i])
		}
	}
}

type noBoundarySynth struct{}

func (noBoundarySynth) Synthesize(context.Context, string, string) (*Synthesis, error) {
	return &Synthesis{PCM: make([]byte, 320), SampleRate: 16000}, nil
}
