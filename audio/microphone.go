package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"voxtype/log"
)

// Sink receives captured PCM chunks in order.
type Sink func(pcm []byte) error

// Source opens a microphone on a fixed device and format.
type Source struct {
	ctx    Context
	device *DeviceInfo
	config CaptureConfig
}

func NewSource(ctx Context, device *DeviceInfo, config CaptureConfig) *Source {
	return &Source{ctx: ctx, device: device, config: config}
}

func (s *Source) DeviceName() string {
	if s.device != nil {
		return s.device.Name
	}
	return "system default"
}

// Open prepares a microphone that forwards frames to sink once started.
// Every tap receives the same frames after sink.
func (s *Source) Open(sink Sink, taps ...func([]byte)) (*Microphone, error) {
	dev, err := s.ctx.NewCapture(s.device, s.config)
	if err != nil {
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	return &Microphone{dev: dev, sink: sink, taps: taps}, nil
}

// Microphone copies frames off the capture callback into a queue drained
// by a single goroutine, so a slow sink never blocks the audio thread.
type Microphone struct {
	dev  CaptureDevice
	sink Sink
	taps []func([]byte)

	mu      sync.Mutex
	frames  chan []byte
	stopped bool
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

const micQueueLen = 256

func (m *Microphone) Start() error {
	m.mu.Lock()
	m.frames = make(chan []byte, micQueueLen)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.pump()
	m.dev.SetCallback(m.onFrames)
	if err := m.dev.Start(); err != nil {
		m.Finish()
		return fmt.Errorf("start capture: %w", err)
	}
	return nil
}

func (m *Microphone) onFrames(data []byte, _ uint32) {
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	select {
	case m.frames <- buf:
	default:
		m.dropped.Add(1)
	}
}

func (m *Microphone) pump() {
	defer close(m.done)
	var sinkFailed bool
	for buf := range m.frames {
		if err := m.sink(buf); err != nil && !sinkFailed {
			sinkFailed = true
			log.Warnf("microphone sink: %v", err)
		}
		for _, tap := range m.taps {
			tap(buf)
		}
	}
}

// Finish stops capture, delivers queued frames and releases the device.
func (m *Microphone) Finish() {
	m.once.Do(func() {
		m.dev.Stop()
		m.dev.ClearCallback()

		m.mu.Lock()
		m.stopped = true
		frames, done := m.frames, m.done
		m.mu.Unlock()

		if frames != nil {
			close(frames)
			<-done
		}
		m.dev.Close()
		if n := m.dropped.Load(); n > 0 {
			log.Warnf("microphone dropped %d chunks", n)
		}
	})
}
