package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"voxtype/chime"
	"voxtype/log"
	"voxtype/session"
)

type command int

const (
	cmdToggle command = iota
	cmdStart
	cmdStop
	cmdPause
	cmdView
	cmdQuit
)

func (c command) String() string {
	switch c {
	case cmdToggle:
		return "toggle"
	case cmdStart:
		return "start"
	case cmdStop:
		return "stop"
	case cmdPause:
		return "pause"
	case cmdView:
		return "view"
	case cmdQuit:
		return "quit"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// controller is the subset of session.Manager the UI loop drives.
type controller interface {
	Start()
	Stop()
	Toggle()
	TogglePause()
	ViewTranscript()
	Close()
}

// dispatcher implements session.UI. Scheduled tasks are posted to a channel
// drained by the UI loop; state updates go to show.
type dispatcher struct {
	tasks chan func()
	done  chan struct{}
	show  func(session.State)
	open  func(path string) error
}

func newDispatcher(show func(session.State)) *dispatcher {
	return &dispatcher{
		tasks: make(chan func(), 16),
		done:  make(chan struct{}),
		show:  show,
		open:  openFile,
	}
}

func (d *dispatcher) UpdateState(s session.State) {
	if d.show != nil {
		d.show(s)
	}
}

func (d *dispatcher) ScheduleTask(delay time.Duration, fn func()) {
	time.AfterFunc(delay, func() {
		select {
		case <-d.done:
			return
		default:
		}
		select {
		case d.tasks <- fn:
		case <-d.done:
		}
	})
}

func (d *dispatcher) OpenFile(path string) error {
	return d.open(path)
}

// close drops tasks scheduled after the UI loop has exited.
func (d *dispatcher) close() {
	close(d.done)
}

// withChimes plays a tone whenever a session starts or stops before passing
// the state on to show.
func withChimes(show func(session.State)) func(session.State) {
	return chimeOnTransition(show, chime.Play)
}

func chimeOnTransition(show func(session.State), play func(chime.Kind)) func(session.State) {
	var mu sync.Mutex
	running := false
	return func(s session.State) {
		mu.Lock()
		was := running
		running = s.Running
		mu.Unlock()
		switch {
		case s.Running && !was:
			play(chime.Start)
		case !s.Running && was:
			play(chime.Stop)
		}
		if show != nil {
			show(s)
		}
	}
}

func openFile(path string) error {
	cmd := openCommand(path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch viewer: %w", err)
	}
	go cmd.Wait()
	return nil
}

// loop runs every session command on one goroutine until ctx is cancelled
// or a quit command arrives. The running session is stopped on the way out.
func loop(ctx context.Context, ctl controller, d *dispatcher, commands <-chan command, hotkeyDown <-chan struct{}) {
	defer d.close()
	defer ctl.Close()

	for {
		select {
		case <-ctx.Done():
			log.Info("shutdown requested")
			return
		case <-hotkeyDown:
			log.Debugf("hotkey pressed")
			ctl.Toggle()
		case fn := <-d.tasks:
			fn()
		case c, ok := <-commands:
			if !ok || c == cmdQuit {
				log.Info("quit requested")
				return
			}
			switch c {
			case cmdToggle:
				ctl.Toggle()
			case cmdStart:
				ctl.Start()
			case cmdStop:
				ctl.Stop()
			case cmdPause:
				ctl.TogglePause()
			case cmdView:
				ctl.ViewTranscript()
			}
		}
	}
}
