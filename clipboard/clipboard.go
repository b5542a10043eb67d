// Package clipboard types text into the focused application, using key
// events where the platform keymap allows and a clipboard paste otherwise.
package clipboard

import (
	"time"

	cb "github.com/atotto/clipboard"
)

// restoreDelay gives the target application time to read the clipboard
// before the previous contents are put back.
const restoreDelay = 150 * time.Millisecond

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}

// Typer types text into whatever window has keyboard focus.
type Typer interface {
	Type(text string) error
}
