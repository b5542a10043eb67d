//go:build darwin

package clipboard

import (
	"time"

	"github.com/micmonay/keybd_event"
)

const initDelay time.Duration = 0

// Punctuation goes through the clipboard on macOS.
var punctKeys = map[byte]keyStroke{}

func setPasteModifier(kb *keybd_event.KeyBonding, on bool) {
	kb.HasSuper(on) // Cmd+V
}
