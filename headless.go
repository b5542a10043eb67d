package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"voxtype/session"
)

var headlessCommands = map[string]command{
	"toggle": cmdToggle,
	"start":  cmdStart,
	"stop":   cmdStop,
	"pause":  cmdPause,
	"resume": cmdPause,
	"view":   cmdView,
	"quit":   cmdQuit,
	"exit":   cmdQuit,
}

// readCommands feeds one command per input line until EOF, then quits.
// Unknown lines are reported on out.
func readCommands(in io.Reader, out io.Writer, commands chan<- command) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}
		c, ok := headlessCommands[line]
		if !ok {
			fmt.Fprintf(out, "unknown command %q (start, stop, toggle, pause, view, quit)\n", line)
			continue
		}
		commands <- c
		if c == cmdQuit {
			return
		}
	}
	commands <- cmdQuit
}

func describeState(s session.State) string {
	switch {
	case s.Running && s.Paused:
		return fmt.Sprintf("paused (session %s)", s.SessionID)
	case s.Running:
		return fmt.Sprintf("listening (session %s)", s.SessionID)
	case s.HasTranscriptFile:
		return "stopped, transcript saved to " + s.TranscriptPath
	}
	return "stopped"
}
