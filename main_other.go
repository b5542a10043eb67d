//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// Global hotkeys on darwin and windows need the OS main thread.
func main() {
	mainthread.Init(run)
}
