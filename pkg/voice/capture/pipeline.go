package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ai-waiter-service/internal/config"
	"ai-waiter-service/internal/pkg/logger"
)

// Pipeline runs one capture cycle: acquire the microphone, frame the raw
// device chunks and hand each frame to the emitter. Stopping is the
// drawn-out half: the frame gate drops so no more speech gets in, the
// backend is told the utterance ended, the device is released, and then
// the pipeline waits a bounded time for the final transcript before
// giving the cycle up.
type Pipeline struct {
	src Source
	cfg config.SpeechConfig
	log logger.ILogger

	mu      sync.Mutex
	started bool
	framer  *Framer

	// hot gates frames: once Stop flips it, late audio-thread callbacks
	// are dropped instead of leaking into the next cycle.
	hot     atomic.Bool
	finalCh chan struct{}
}

func NewPipeline(src Source, cfg config.SpeechConfig, log logger.ILogger) *Pipeline {
	frameBytes := cfg.SampleRate / 1000 * cfg.FrameMs * 2 * cfg.Channels
	return &Pipeline{
		src:    src,
		cfg:    cfg,
		log:    log,
		framer: NewFramer(frameBytes),
	}
}

// Start acquires the device and begins emitting fixed frames. Calling
// Start while already capturing is a no-op.
func (p *Pipeline) Start(ctx context.Context, emit func(frame []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	p.framer.Reset()
	p.finalCh = make(chan struct{}, 1)
	p.hot.Store(true)

	err := p.src.Start(ctx, func(chunk []byte) {
		if !p.hot.Load() {
			return
		}
		p.framer.Push(chunk, emit)
	})
	if err != nil {
		p.hot.Store(false)
		return err
	}
	p.started = true
	return nil
}

// Stop gates out further frames, runs sendEnd to mark end of audio,
// releases the microphone, then waits up to the configured timeout for
// NotifyFinal. Dropping the hot gate first guarantees nothing follows the
// end frame onto the channel. A missing final transcript degrades the
// cycle, it does not hang it.
func (p *Pipeline) Stop(ctx context.Context, sendEnd func() error) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	finalCh := p.finalCh
	p.mu.Unlock()

	p.hot.Store(false)
	if sendEnd != nil {
		if err := sendEnd(); err != nil {
			p.releaseDevice()
			return err
		}
	}
	p.releaseDevice()

	select {
	case <-finalCh:
	case <-time.After(p.cfg.FinalWaitTimeout):
		p.log.Warn("capture", "timed out waiting for final transcript", map[string]interface{}{
			"timeout": p.cfg.FinalWaitTimeout.String(),
		})
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *Pipeline) releaseDevice() {
	if err := p.src.Stop(); err != nil {
		p.log.Warn("capture", "device release failed", map[string]interface{}{"error": err.Error()})
	}
}

// NotifyFinal wakes a Stop that is waiting for the final transcript.
func (p *Pipeline) NotifyFinal() {
	p.mu.Lock()
	ch := p.finalCh
	p.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Abort releases the device without the end handshake. Used by the hard
// reset path.
func (p *Pipeline) Abort() {
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
	p.hot.Store(false)
	_ = p.src.Stop()
}
