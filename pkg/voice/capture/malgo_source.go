package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSource captures from the default input device via miniaudio.
type MalgoSource struct {
	sampleRate int
	channels   int

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

func NewMalgoSource(sampleRate, channels int) *MalgoSource {
	return &MalgoSource{sampleRate: sampleRate, channels: channels}
}

func (m *MalgoSource) Start(_ context.Context, onData func(pcm []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		return nil
	}

	allocated, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(m.channels)
	cfg.SampleRate = uint32(m.sampleRate)
	cfg.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onData(input)
		},
	}

	device, err := malgo.InitDevice(allocated.Context, cfg, callbacks)
	if err != nil {
		allocated.Uninit()
		return fmt.Errorf("capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		allocated.Uninit()
		return fmt.Errorf("capture start: %w", err)
	}

	m.ctx = allocated
	m.device = device
	return nil
}

func (m *MalgoSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == nil {
		return nil
	}
	m.device.Uninit()
	m.ctx.Uninit()
	m.device = nil
	m.ctx = nil
	return nil
}
