package reveal

import (
	"sync"
	"testing"
	"time"

	"ai-waiter-service/internal/config"
	"ai-waiter-service/internal/pkg/logger"
)

var testCfg = config.RevealConfig{
	WarmUp:       120 * time.Millisecond,
	MinStep:      80 * time.Millisecond,
	FallbackStep: 120 * time.Millisecond,
	StartPack:    3,
	EndGrace:     250 * time.Millisecond,
}

type capturedTimer struct {
	due time.Time
	fn  func()
}

// testHarness pins the clock and records scheduled timers so tests can
// inspect due times and fire timers deliberately.
type testHarness struct {
	mu     sync.Mutex
	now    time.Time
	timers []capturedTimer
}

func newHarness() *testHarness {
	return &testHarness{now: time.Unix(1000, 0)}
}

func (h *testHarness) attach(s *Scheduler) {
	s.now = func() time.Time {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.now
	}
	s.after = func(d time.Duration, f func()) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.timers = append(h.timers, capturedTimer{due: h.now.Add(d), fn: f})
	}
}

func (h *testHarness) fireAll() {
	h.mu.Lock()
	timers := h.timers
	h.timers = nil
	h.mu.Unlock()
	for _, t := range timers {
		t.fn()
	}
}

func (h *testHarness) dueTimes() []time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]time.Time, len(h.timers))
	for i, t := range h.timers {
		out[i] = t.due
	}
	return out
}

type collectSink struct {
	mu        sync.Mutex
	words     []string
	finalized int
}

func (c *collectSink) RevealWord(token string) {
	c.mu.Lock()
	c.words = append(c.words, token)
	c.mu.Unlock()
}

func (c *collectSink) Finalize() {
	c.mu.Lock()
	c.finalized++
	c.mu.Unlock()
}

func newTestScheduler() (*Scheduler, *testHarness, *collectSink) {
	sink := &collectSink{}
	s := NewScheduler(testCfg, sink, logger.Noop{})
	h := newHarness()
	h.attach(s)
	return s, h, sink
}

func TestFirstWordAnchorsAtWarmUp(t *testing.T) {
	s, h, _ := newTestScheduler()
	s.OnSpeechStart("u1", "hello")
	s.OnWord("u1", "hello", 0, true)

	due := h.dueTimes()
	if len(due) != 1 {
		t.Fatalf("got %d timers, want 1", len(due))
	}
	want := h.now.Add(testCfg.WarmUp)
	if !due[0].Equal(want) {
		t.Fatalf("first due = %v, want %v", due[0], want)
	}
}

func TestStartPackStepsByMinStep(t *testing.T) {
	s, h, _ := newTestScheduler()
	s.OnSpeechStart("u1", "")
	// Offsets deliberately huge: the start pack must ignore them.
	offsets := []time.Duration{0, 5 * time.Second, 6 * time.Second, 7 * time.Second}
	for _, off := range offsets {
		s.OnWord("u1", "w", off, true)
	}

	due := h.dueTimes()
	anchor := h.now.Add(testCfg.WarmUp)
	for i := 1; i < len(due); i++ {
		want := anchor.Add(time.Duration(i) * testCfg.MinStep)
		if !due[i].Equal(want) {
			t.Errorf("word %d due = %v, want %v", i, due[i], want)
		}
	}
}

func TestOffsetsScheduleFromAnchor(t *testing.T) {
	s, h, _ := newTestScheduler()
	s.OnSpeechStart("u1", "")
	for i := 0; i <= testCfg.StartPack; i++ {
		s.OnWord("u1", "w", time.Duration(i)*100*time.Millisecond, true)
	}
	// Past the start pack with a clean offset.
	s.OnWord("u1", "later", 2*time.Second, true)

	due := h.dueTimes()
	anchor := h.now.Add(testCfg.WarmUp)
	want := anchor.Add(2 * time.Second)
	if got := due[len(due)-1]; !got.Equal(want) {
		t.Fatalf("offset word due = %v, want %v", got, want)
	}
}

func TestDueTimesMonotonicWithMinimumSpacing(t *testing.T) {
	s, h, _ := newTestScheduler()
	s.OnSpeechStart("u1", "")

	// Jittery offsets, some missing, some going backwards.
	events := []struct {
		off time.Duration
		has bool
	}{
		{0, true}, {50 * time.Millisecond, true}, {40 * time.Millisecond, true},
		{400 * time.Millisecond, true}, {100 * time.Millisecond, true},
		{0, false}, {900 * time.Millisecond, true}, {0, false},
	}
	for _, ev := range events {
		s.OnWord("u1", "w", ev.off, ev.has)
	}

	due := h.dueTimes()
	for i := 1; i < len(due); i++ {
		gap := due[i].Sub(due[i-1])
		if gap < testCfg.MinStep {
			t.Errorf("gap %d = %v, want >= %v", i, gap, testCfg.MinStep)
		}
	}
}

func TestMissingOffsetUsesFallbackStep(t *testing.T) {
	s, h, _ := newTestScheduler()
	s.OnSpeechStart("u1", "")
	for i := 0; i <= testCfg.StartPack; i++ {
		s.OnWord("u1", "w", 0, false)
	}
	before := h.dueTimes()
	prev := before[len(before)-1]

	s.OnWord("u1", "next", 0, false)
	due := h.dueTimes()
	want := prev.Add(testCfg.FallbackStep)
	if got := due[len(due)-1]; !got.Equal(want) {
		t.Fatalf("fallback due = %v, want %v", got, want)
	}
}

func TestStaleGenerationTimersNoOp(t *testing.T) {
	s, h, sink := newTestScheduler()
	s.OnSpeechStart("u1", "")
	s.OnWord("u1", "stale", 0, true)

	// New utterance supersedes before the timer fires.
	s.OnSpeechStart("u2", "")
	s.OnWord("u2", "fresh", 0, true)
	h.fireAll()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.words) != 1 || sink.words[0] != "fresh" {
		t.Fatalf("revealed %v, want only [fresh]", sink.words)
	}
}

func TestSpeechEndFinalizesAfterGrace(t *testing.T) {
	s, h, sink := newTestScheduler()
	s.OnSpeechStart("u1", "")
	s.OnWord("u1", "only", 0, true)
	s.OnSpeechEnd("u1")

	due := h.dueTimes()
	last := due[len(due)-1]
	want := h.now.Add(testCfg.WarmUp).Add(testCfg.EndGrace)
	if !last.Equal(want) {
		t.Fatalf("finalize due = %v, want %v", last, want)
	}

	h.fireAll()
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.finalized != 1 {
		t.Fatalf("finalized %d times, want 1", sink.finalized)
	}
}

func TestSupersededEndDoesNotFinalize(t *testing.T) {
	s, h, sink := newTestScheduler()
	s.OnSpeechStart("u1", "")
	s.OnWord("u1", "a", 0, true)
	s.OnSpeechEnd("u1")
	s.OnSpeechStart("u2", "")
	h.fireAll()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.finalized != 0 {
		t.Fatalf("stale finalize fired %d times", sink.finalized)
	}
}
