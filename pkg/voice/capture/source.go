package capture

import "context"

// Source is a raw microphone. Implementations invoke the data callback
// from the audio thread with whatever chunk size the device delivers; the
// framer upstream regroups chunks into fixed frames.
type Source interface {
	// Start acquires the device and begins delivering PCM chunks.
	Start(ctx context.Context, onData func(pcm []byte)) error
	// Stop releases the device. Safe to call when not started.
	Stop() error
}

// Framer regroups arbitrary-size device chunks into exact fixed-size
// frames. Not safe for concurrent use; the audio callback is the only
// writer.
type Framer struct {
	size int
	buf  []byte
}

func NewFramer(frameBytes int) *Framer {
	return &Framer{size: frameBytes}
}

// Push appends a device chunk and emits every complete frame it closes.
// Each emitted slice is a fresh copy; callers may retain it.
func (f *Framer) Push(chunk []byte, emit func(frame []byte)) {
	f.buf = append(f.buf, chunk...)
	for len(f.buf) >= f.size {
		frame := make([]byte, f.size)
		copy(frame, f.buf[:f.size])
		f.buf = f.buf[f.size:]
		emit(frame)
	}
}

// Reset drops any partial frame left over from the previous cycle.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}
