package synth

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"ai-waiter-service/internal/pkg/logger"
	"ai-waiter-service/pkg/utils"
)

// ErrStopped resolves every queued utterance flushed by Stop.
var ErrStopped = errors.New("speech stopped")

// duckVolume caps playback while the microphone is hot.
const duckVolume = 0.2

type utterance struct {
	id   string
	text string
	done chan error
}

// Engine speaks utterances strictly one at a time. Speak enqueues and
// returns a promise channel; Stop interrupts the current utterance and
// rejects everything still queued. Observers get start, per-word and end
// events for each utterance that reaches playback.
type Engine struct {
	synth Synthesizer
	sink  AudioSink
	log   logger.ILogger

	mu        sync.Mutex
	queue     []*utterance
	notify    chan struct{}
	cancel    context.CancelFunc
	voice     string
	muted     bool
	volume    float64
	ducked    bool
	preDuck   float64
	observers []Observer
}

func NewEngine(s Synthesizer, sink AudioSink, voice string, log logger.ILogger) *Engine {
	return &Engine{
		synth:  s,
		sink:   sink,
		log:    log,
		notify: make(chan struct{}, 1),
		voice:  voice,
		volume: 1.0,
	}
}

func (e *Engine) Subscribe(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Speak enqueues text for playback. The returned channel resolves with nil
// once the utterance finished playing, or with an error if synthesis or
// playback failed, or with ErrStopped if it was flushed before playing.
func (e *Engine) Speak(text string) <-chan error {
	u := &utterance{id: uuid.NewString(), text: text, done: make(chan error, 1)}

	e.mu.Lock()
	e.queue = append(e.queue, u)
	e.mu.Unlock()

	select {
	case e.notify <- struct{}{}:
	default:
	}
	return u.done
}

// Stop interrupts the current utterance, rejects every queued one and
// rebuilds the audio output so the next Speak starts from a clean sink.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	flushed := e.queue
	e.queue = nil
	e.mu.Unlock()

	for _, u := range flushed {
		u.done <- ErrStopped
	}

	e.sink.Stop()
	if err := e.sink.Reset(); err != nil {
		e.log.Warn("synth", "audio sink rebuild failed", map[string]interface{}{"error": err.Error()})
	}
}

func (e *Engine) Pause()  { e.sink.Pause() }
func (e *Engine) Resume() { e.sink.Resume() }

// Duck lowers playback so speech does not bleed into the microphone. The
// pre-duck volume is snapshotted exactly once; repeated Duck calls keep the
// first snapshot so Unduck always restores the user's own level.
func (e *Engine) Duck() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ducked {
		return
	}
	e.ducked = true
	e.preDuck = e.volume
	if e.volume > duckVolume {
		e.volume = duckVolume
	}
	e.applyVolumeLocked()
}

// Unduck restores the volume snapshotted by the matching Duck.
func (e *Engine) Unduck() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ducked {
		return
	}
	e.ducked = false
	e.volume = e.preDuck
	e.applyVolumeLocked()
}

func (e *Engine) SetVoice(voice string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voice = voice
}

func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
	e.applyVolumeLocked()
}

// SetVolume sets the user-facing volume in [0,1]. While ducked it updates
// the restore snapshot instead of the live (capped) level.
func (e *Engine) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ducked {
		e.preDuck = v
		if v < duckVolume {
			e.volume = v
		} else {
			e.volume = duckVolume
		}
	} else {
		e.volume = v
	}
	e.applyVolumeLocked()
}

func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ducked {
		return e.preDuck
	}
	return e.volume
}

func (e *Engine) applyVolumeLocked() {
	if e.muted {
		e.sink.SetVolume(0)
		return
	}
	e.sink.SetVolume(e.volume)
}

// Run drains the queue until ctx is cancelled. Call once, in its own
// goroutine.
func (e *Engine) Run(ctx context.Context) {
	for {
		u := e.dequeue()
		if u == nil {
			select {
			case <-ctx.Done():
				return
			case <-e.notify:
				continue
			}
		}
		u.done <- e.play(ctx, u)
	}
}

func (e *Engine) dequeue() *utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil
	}
	u := e.queue[0]
	e.queue = e.queue[1:]
	return u
}

func (e *Engine) play(ctx context.Context, u *utterance) error {
	playCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	voice := e.voice
	obs := append([]Observer(nil), e.observers...)
	e.mu.Unlock()
	defer func() {
		cancel()
		e.mu.Lock()
		e.cancel = nil
		e.mu.Unlock()
	}()

	syn, err := e.synth.Synthesize(playCtx, u.text, voice)
	if err != nil {
		e.log.Warn("synth", "synthesis failed", map[string]interface{}{
			"utterance": u.id, "error": err.Error(),
		})
		return err
	}

	for _, o := range obs {
		o.OnSpeechStart(u.id, u.text)
	}
	if len(syn.Words) > 0 {
		for _, w := range syn.Words {
			for _, o := range obs {
				o.OnWord(u.id, w.Token, w.Offset, w.HasOffset)
			}
		}
	} else {
		for _, tok := range utils.Tokenize(u.text) {
			for _, o := range obs {
				o.OnWord(u.id, tok, 0, false)
			}
		}
	}

	err = e.sink.Play(playCtx, syn.PCM, syn.SampleRate)

	for _, o := range obs {
		o.OnSpeechEnd(u.id)
	}
	if errors.Is(err, context.Canceled) {
		return ErrStopped
	}
	return err
}
