//go:build !linux && !darwin

package clipboard

import (
	"time"

	"github.com/micmonay/keybd_event"
)

const initDelay time.Duration = 0

var punctKeys = map[byte]keyStroke{}

func setPasteModifier(kb *keybd_event.KeyBonding, on bool) {
	kb.HasCTRL(on)
}
