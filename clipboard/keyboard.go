package clipboard

import (
	"fmt"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

// Keyboard injects text as synthetic key taps with a fixed delay between
// characters. Characters without a key on the platform keymap are pasted.
type Keyboard struct {
	mu    sync.Mutex
	kb    keybd_event.KeyBonding
	delay time.Duration
	sleep func(time.Duration)
}

func NewKeyboard(delay time.Duration) (*Keyboard, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("keyboard init: %w", err)
	}
	// The virtual device must be registered by the OS before the first event.
	time.Sleep(initDelay)
	return &Keyboard{kb: kb, delay: delay, sleep: time.Sleep}, nil
}

type keyStroke struct {
	code  int
	shift bool
}

// plan splits text into key strokes and runs of text that must be pasted.
// Exactly one of strokes or paste is set on each step.
type step struct {
	stroke *keyStroke
	paste  string
}

func plan(text string) []step {
	var steps []step
	var pending []rune
	flush := func() {
		if len(pending) > 0 {
			steps = append(steps, step{paste: string(pending)})
			pending = nil
		}
	}
	for _, r := range text {
		if k, ok := keyFor(r); ok {
			flush()
			steps = append(steps, step{stroke: &k})
			continue
		}
		pending = append(pending, r)
	}
	flush()
	return steps
}

func (k *Keyboard) Type(text string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, s := range plan(text) {
		if s.stroke != nil {
			if err := k.tap(*s.stroke); err != nil {
				return err
			}
			k.sleep(k.delay)
			continue
		}
		if err := k.paste(s.paste); err != nil {
			return err
		}
	}
	return nil
}

func (k *Keyboard) tap(s keyStroke) error {
	k.kb.Clear()
	k.kb.HasSHIFT(s.shift)
	k.kb.SetKeys(s.code)
	defer k.kb.HasSHIFT(false)
	if err := k.kb.Launching(); err != nil {
		return fmt.Errorf("key tap: %w", err)
	}
	return nil
}

// paste puts text on the clipboard, sends the paste chord and then restores
// the previous clipboard contents.
func (k *Keyboard) paste(text string) error {
	previous, readErr := Read()
	if err := Copy(text); err != nil {
		return fmt.Errorf("paste %q: %w", text, err)
	}
	k.kb.Clear()
	k.kb.SetKeys(keybd_event.VK_V)
	setPasteModifier(&k.kb, true)
	err := k.kb.Launching()
	setPasteModifier(&k.kb, false)
	if err != nil {
		return fmt.Errorf("paste chord: %w", err)
	}
	if readErr == nil {
		k.sleep(restoreDelay)
		Copy(previous)
	}
	return nil
}

func keyFor(r rune) (keyStroke, bool) {
	switch {
	case r >= 'a' && r <= 'z':
		return keyStroke{code: letterKeys[r-'a']}, true
	case r >= 'A' && r <= 'Z':
		return keyStroke{code: letterKeys[r-'A'], shift: true}, true
	case r >= '0' && r <= '9':
		return keyStroke{code: digitKeys[r-'0']}, true
	case r == ' ':
		return keyStroke{code: keybd_event.VK_SPACE}, true
	}
	if r < 0x80 {
		if k, ok := punctKeys[byte(r)]; ok {
			return k, true
		}
	}
	return keyStroke{}, false
}

var letterKeys = [26]int{
	keybd_event.VK_A, keybd_event.VK_B, keybd_event.VK_C, keybd_event.VK_D,
	keybd_event.VK_E, keybd_event.VK_F, keybd_event.VK_G, keybd_event.VK_H,
	keybd_event.VK_I, keybd_event.VK_J, keybd_event.VK_K, keybd_event.VK_L,
	keybd_event.VK_M, keybd_event.VK_N, keybd_event.VK_O, keybd_event.VK_P,
	keybd_event.VK_Q, keybd_event.VK_R, keybd_event.VK_S, keybd_event.VK_T,
	keybd_event.VK_U, keybd_event.VK_V, keybd_event.VK_W, keybd_event.VK_X,
	keybd_event.VK_Y, keybd_event.VK_Z,
}

var digitKeys = [10]int{
	keybd_event.VK_0, keybd_event.VK_1, keybd_event.VK_2, keybd_event.VK_3,
	keybd_event.VK_4, keybd_event.VK_5, keybd_event.VK_6, keybd_event.VK_7,
	keybd_event.VK_8, keybd_event.VK_9,
}
