package reveal

import (
	"sync"
	"time"

	"ai-waiter-service/internal/config"
	"ai-waiter-service/internal/pkg/logger"
)

// Sink receives the timed output of the scheduler: one RevealWord per token
// when its due time arrives, then Finalize once the utterance has fully
// played out.
type Sink interface {
	RevealWord(token string)
	Finalize()
}

// Scheduler turns the synthesis engine's word events into a paced reveal.
// Timing events arrive in a burst well before the audio reaches those
// words, and some voices report no offsets at all, so each token gets a
// computed due time instead of being shown immediately:
//
//   - the first token anchors the utterance at now plus a short warm-up;
//   - the next few tokens (the start pack) step by the minimum step so the
//     opening of the sentence never bursts onto the screen at once;
//   - later tokens follow their reported offset from the anchor, or the
//     fallback step when the voice reported none;
//   - every due time is clamped to at least the previous due plus the
//     minimum step, so reveals are monotonic and minimally spaced even
//     when reported offsets jitter backwards.
//
// Cancellation is a generation counter: a new utterance bumps the
// generation and every timer scheduled under an older one no-ops when it
// fires. Timers are never tracked or stopped individually.
type Scheduler struct {
	cfg  config.RevealConfig
	sink Sink
	log  logger.ILogger

	mu      sync.Mutex
	gen     uint64
	idx     int
	anchor  time.Time
	prevDue time.Time

	// Injected for tests; real schedulers use the wall clock.
	now   func() time.Time
	after func(d time.Duration, f func())
}

func NewScheduler(cfg config.RevealConfig, sink Sink, log logger.ILogger) *Scheduler {
	return &Scheduler{
		cfg:  cfg,
		sink: sink,
		log:  log,
		now:  time.Now,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// OnSpeechStart opens a new reveal generation. Pending timers from the
// previous utterance become no-ops.
func (s *Scheduler) OnSpeechStart(string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.idx = 0
	s.anchor = time.Time{}
	s.prevDue = time.Time{}
}

func (s *Scheduler) OnWord(_ string, token string, offset time.Duration, hasOffset bool) {
	s.mu.Lock()
	now := s.now()

	var due time.Time
	switch {
	case s.idx == 0:
		s.anchor = now.Add(s.cfg.WarmUp)
		due = s.anchor
	case s.idx <= s.cfg.StartPack:
		due = s.prevDue.Add(s.cfg.MinStep)
	case hasOffset && offset >= 0:
		due = s.anchor.Add(offset)
	default:
		due = s.prevDue.Add(s.cfg.FallbackStep)
		if now.After(due) {
			due = now
		}
	}
	if s.idx > 0 {
		if floor := s.prevDue.Add(s.cfg.MinStep); due.Before(floor) {
			due = floor
		}
	}

	s.prevDue = due
	s.idx++
	gen := s.gen
	delay := due.Sub(now)
	s.mu.Unlock()

	if delay < 0 {
		delay = 0
	}
	s.after(delay, func() {
		if !s.currentGen(gen) {
			return
		}
		s.sink.RevealWord(token)
	})
}

// OnSpeechEnd waits out the last scheduled reveal plus a grace period, then
// finalizes the live buffer.
func (s *Scheduler) OnSpeechEnd(string) {
	s.mu.Lock()
	now := s.now()
	due := s.prevDue
	if due.IsZero() {
		due = now
	}
	due = due.Add(s.cfg.EndGrace)
	gen := s.gen
	s.mu.Unlock()

	delay := due.Sub(now)
	if delay < 0 {
		delay = 0
	}
	s.after(delay, func() {
		if !s.currentGen(gen) {
			return
		}
		s.sink.Finalize()
	})
}

func (s *Scheduler) currentGen(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen
}
