//go:build !linux

package chime

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// One playback at a time; a new chime waits for the previous one.
var playMu sync.Mutex

func play(t tone) {
	playMu.Lock()
	defer playMu.Unlock()

	pcm := t.samples(1)
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}
	defer func() {
		ctx.Uninit()
		ctx.Free()
	}()

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = sampleRate

	var mu sync.Mutex
	pos := 0
	done := make(chan struct{})
	var doneOnce sync.Once
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			mu.Lock()
			n := copy(out, buf[pos:])
			pos += n
			finished := pos >= len(buf)
			mu.Unlock()
			clear(out[n:])
			if finished {
				doneOnce.Do(func() { close(done) })
			}
		},
	}
	device, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		return
	}
	defer device.Uninit()
	if err := device.Start(); err != nil {
		return
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	// let the device drain its last period
	time.Sleep(50 * time.Millisecond)
	device.Stop()
}
