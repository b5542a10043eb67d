// Package chime plays short tones when a dictation session starts or stops.
package chime

import (
	"math"
	"sync/atomic"
)

type Kind int

const (
	Start Kind = iota
	Stop
	Error
)

const sampleRate = 44100

type tone struct {
	freq     float64
	seconds  float64
	volume   float64
	decay    float64
	repeat   int
	gapSecs  float64
	channels int
}

var tones = map[Kind]tone{
	Start: {freq: 1200, seconds: 0.2, volume: 0.5, decay: 60, repeat: 1},
	Stop:  {freq: 900, seconds: 0.2, volume: 0.5, decay: 40, repeat: 1},
	Error: {freq: 350, seconds: 0.08, volume: 0.6, decay: 30, repeat: 2, gapSecs: 0.05},
}

var muted atomic.Bool

// Mute silences every later Play call.
func Mute() { muted.Store(true) }

// Play starts the tone for k in the background. Playback errors are dropped.
func Play(k Kind) {
	if muted.Load() {
		return
	}
	t, ok := tones[k]
	if !ok {
		return
	}
	go play(t)
}

// samples renders t as interleaved signed 16-bit PCM with the given channel count.
func (t tone) samples(channels int) []int16 {
	n := int(sampleRate * t.seconds)
	gap := int(sampleRate * t.gapSecs)
	out := make([]int16, 0, (n*t.repeat+gap*(t.repeat-1))*channels)
	for r := 0; r < t.repeat; r++ {
		if r > 0 {
			out = append(out, make([]int16, gap*channels)...)
		}
		for i := 0; i < n; i++ {
			sec := float64(i) / sampleRate
			s := int16(math.Sin(2*math.Pi*t.freq*sec) * 32767 * t.volume * math.Exp(-sec*t.decay))
			for c := 0; c < channels; c++ {
				out = append(out, s)
			}
		}
	}
	return out
}
