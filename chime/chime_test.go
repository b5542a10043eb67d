package chime

import "testing"

func TestToneSamplesLength(t *testing.T) {
	start := tones[Start].samples(2)
	if want := int(sampleRate*0.2) * 2; len(start) != want {
		t.Errorf("start tone has %d samples, want %d", len(start), want)
	}

	errTone := tones[Error]
	n := int(sampleRate * errTone.seconds)
	gap := int(sampleRate * errTone.gapSecs)
	if got := len(errTone.samples(1)); got != 2*n+gap {
		t.Errorf("error tone has %d samples, want %d", got, 2*n+gap)
	}
}

func TestToneDecays(t *testing.T) {
	s := tones[Stop].samples(1)
	peak := func(from, to int) int16 {
		var m int16
		for _, v := range s[from:to] {
			if v < 0 {
				v = -v
			}
			if v > m {
				m = v
			}
		}
		return m
	}
	head, tail := peak(0, 500), peak(len(s)-500, len(s))
	if head == 0 || tail >= head {
		t.Errorf("expected a decaying tone, head peak %d, tail peak %d", head, tail)
	}
}

func TestToneStereoChannelsMatch(t *testing.T) {
	s := tones[Start].samples(2)
	for i := 0; i+1 < len(s); i += 2 {
		if s[i] != s[i+1] {
			t.Fatalf("frame %d: left %d != right %d", i/2, s[i], s[i+1])
		}
	}
}

func TestMutedPlayIsNoop(t *testing.T) {
	Mute()
	t.Cleanup(func() { muted.Store(false) })
	Play(Start)
	Play(Kind(99))
}
