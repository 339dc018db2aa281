package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-waiter-service/internal/config"
	"ai-waiter-service/internal/pkg/logger"
)

type fakeSource struct {
	mu      sync.Mutex
	onData  func([]byte)
	starts  int
	stops   int
	failErr error
}

func (f *fakeSource) Start(_ context.Context, onData func([]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.onData = onData
	f.starts++
	return nil
}

func (f *fakeSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSource) push(b []byte) {
	f.mu.Lock()
	cb := f.onData
	f.mu.Unlock()
	if cb != nil {
		cb(b)
	}
}

func testSpeechConfig() config.SpeechConfig {
	return config.SpeechConfig{
		SampleRate:       16000,
		Channels:         1,
		FrameMs:          20,
		FinalWaitTimeout: 100 * time.Millisecond,
	}
}

func TestFramerRegroupsChunks(t *testing.T) {
	f := NewFramer(640)
	var frames [][]byte
	emit := func(b []byte) { frames = append(frames, b) }

	f.Push(make([]byte, 500), emit)
	if len(frames) != 0 {
		t.Fatal("partial chunk must not emit")
	}
	f.Push(make([]byte, 200), emit)
	if len(frames) != 1 || len(frames[0]) != 640 {
		t.Fatalf("got %d frames", len(frames))
	}
	// 60 bytes remain; a big chunk closes several frames at once.
	f.Push(make([]byte, 640*2+100), emit)
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
}

func TestStartIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	p := NewPipeline(src, testSpeechConfig(), logger.Noop{})

	emit := func([]byte) {}
	if err := p.Start(context.Background(), emit); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(context.Background(), emit); err != nil {
		t.Fatal(err)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.starts != 1 {
		t.Fatalf("device acquired %d times, want 1", src.starts)
	}
}

func TestFramesEmitAtFrameSize(t *testing.T) {
	src := &fakeSource{}
	p := NewPipeline(src, testSpeechConfig(), logger.Noop{})

	var mu sync.Mutex
	var frames [][]byte
	if err := p.Start(context.Background(), func(b []byte) {
		mu.Lock()
		frames = append(frames, b)
		mu.Unlock()
	}); err != nil {
		t.Fatal(err)
	}

	src.push(make([]byte, 1000))
	src.push(make([]byte, 1000))

	mu.Lock()
	defer mu.Unlock()
	// 2000 bytes = three 640-byte frames and an 80-byte remainder.
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, fr := range frames {
		if len(fr) != 640 {
			t.Errorf("frame %d size %d, want 640", i, len(fr))
		}
	}
}

func TestStopDropsLateFrames(t *testing.T) {
	src := &fakeSource{}
	p := NewPipeline(src, testSpeechConfig(), logger.Noop{})

	var mu sync.Mutex
	count := 0
	if err := p.Start(context.Background(), func([]byte) {
		mu.Lock()
		count++
		mu.Unlock()
	}); err != nil {
		t.Fatal(err)
	}

	go p.NotifyFinal()
	if err := p.Stop(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	// The audio thread can still fire after release; frames must not leak.
	src.push(make([]byte, 640))
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("late frame leaked, count = %d", count)
	}
}

func TestStopWaitsForFinalTranscript(t *testing.T) {
	src := &fakeSource{}
	p := NewPipeline(src, testSpeechConfig(), logger.Noop{})
	if err := p.Start(context.Background(), func([]byte) {}); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Stop(context.Background(), nil) }()

	select {
	case <-done:
		t.Fatal("stop returned before the final transcript")
	case <-time.After(20 * time.Millisecond):
	}

	p.NotifyFinal()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("stop never returned")
	}
}

func TestStopTimesOutWithoutFinal(t *testing.T) {
	src := &fakeSource{}
	p := NewPipeline(src, testSpeechConfig(), logger.Noop{})
	if err := p.Start(context.Background(), func([]byte) {}); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := p.Stop(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Fatalf("stop returned after %v, before the bounded wait", elapsed)
	}
}

func TestStopSendsEndBeforeDeviceRelease(t *testing.T) {
	src := &fakeSource{}
	p := NewPipeline(src, testSpeechConfig(), logger.Noop{})
	if err := p.Start(context.Background(), func([]byte) {}); err != nil {
		t.Fatal(err)
	}

	called := false
	sendEnd := func() error {
		called = true
		src.mu.Lock()
		defer src.mu.Unlock()
		if src.stops != 0 {
			t.Error("device released before the end handshake")
		}
		return nil
	}
	go p.NotifyFinal()
	if err := p.Stop(context.Background(), sendEnd); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("end handshake not run")
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.stops != 1 {
		t.Fatalf("device not released after stop: %d stops", src.stops)
	}
}

func TestStopReleasesDeviceWhenEndFails(t *testing.T) {
	src := &fakeSource{}
	p := NewPipeline(src, testSpeechConfig(), logger.Noop{})
	if err := p.Start(context.Background(), func([]byte) {}); err != nil {
		t.Fatal(err)
	}

	wantErr := errors.New("channel gone")
	if err := p.Stop(context.Background(), func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("stop error = %v, want %v", err, wantErr)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.stops != 1 {
		t.Fatalf("failed handshake leaked the device: %d stops", src.stops)
	}
}

func TestDeviceFailureAbortsStart(t *testing.T) {
	src := &fakeSource{failErr: errors.New("permission denied")}
	p := NewPipeline(src, testSpeechConfig(), logger.Noop{})

	if err := p.Start(context.Background(), func([]byte) {}); err == nil {
		t.Fatal("expected device failure")
	}
	// A failed start leaves the pipeline restartable.
	src.failErr = nil
	if err := p.Start(context.Background(), func([]byte) {}); err != nil {
		t.Fatal(err)
	}
}
