// Package doctor runs interactive checks of everything a dictation session
// depends on.
package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"voxtype/audio"
	"voxtype/clipboard"
	"voxtype/config"
	"voxtype/hotkey"
	"voxtype/transcriber"
)

const testPhrase = "voxtype-doctor-test"

// Checks holds what the diagnostics exercise. A nil Hotkey or Typer skips
// that check.
type Checks struct {
	Config config.Config
	Mic    *audio.Source
	Dialer transcriber.Dialer
	Hotkey hotkey.Hotkey
	Typer  clipboard.Typer

	// Diagnose reports on hotkey prerequisites before registering.
	Diagnose func() (string, error)

	In  io.Reader
	Out io.Writer

	HotkeyTimeout time.Duration
	RecordFor     time.Duration
	Countdown     time.Duration

	in       *bufio.Reader
	recorded []byte
}

type check struct {
	title string
	run   func(context.Context) bool
}

// Run executes the checks in order and returns an exit code (0=all pass, 1=any fail).
func (c *Checks) Run(ctx context.Context) int {
	if c.HotkeyTimeout == 0 {
		c.HotkeyTimeout = 10 * time.Second
	}
	if c.RecordFor == 0 {
		c.RecordFor = 3 * time.Second
	}
	c.in = bufio.NewReader(c.In)

	fmt.Fprintln(c.Out, "voxtype doctor - interactive system diagnostics")
	fmt.Fprintln(c.Out, "===============================================")

	checks := []check{
		{"Configuration", c.checkConfig},
		{"Hotkey detection", c.checkHotkey},
		{"Microphone", c.checkMicrophone},
		{"Deepgram live connection", c.checkDeepgram},
		{"Keystroke output", c.checkTyping},
	}
	allPass := true
	for i, ch := range checks {
		if ctx.Err() != nil {
			fmt.Fprintln(c.Out, "\nInterrupted")
			return 1
		}
		fmt.Fprintf(c.Out, "\n[%d/%d] %s\n", i+1, len(checks), ch.title)
		if !ch.run(ctx) {
			allPass = false
		}
	}

	fmt.Fprintln(c.Out)
	if allPass {
		fmt.Fprintln(c.Out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(c.Out, "Some checks failed. See details above.")
	return 1
}

func (c *Checks) pass(format string, args ...any) bool {
	fmt.Fprintf(c.Out, "  PASS: "+format+"\n", args...)
	return true
}

func (c *Checks) fail(format string, args ...any) bool {
	fmt.Fprintf(c.Out, "  FAIL: "+format+"\n", args...)
	return false
}

func (c *Checks) checkConfig(context.Context) bool {
	if err := c.Config.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			fmt.Fprintln(c.Out, "  Set DEEPGRAM_API_KEY in the environment or in .env")
		}
		return c.fail("%v", err)
	}
	if err := c.Config.EnsureDirs(); err != nil {
		return c.fail("%v", err)
	}
	return c.pass("API key set, writing logs to %s and transcripts to %s", c.Config.LogDir, c.Config.TranscriptDir)
}

func (c *Checks) checkHotkey(ctx context.Context) bool {
	if c.Hotkey == nil {
		fmt.Fprintln(c.Out, "  SKIP: no hotkey")
		return true
	}
	if c.Diagnose != nil {
		diag, err := c.Diagnose()
		if err != nil {
			return c.fail("%v", err)
		}
		fmt.Fprintf(c.Out, "  %s\n", diag)
	}
	if err := c.Hotkey.Register(); err != nil {
		return c.fail("could not register hotkey: %v", err)
	}
	defer c.Hotkey.Unregister()

	fmt.Fprintf(c.Out, "Press %s...\n", c.Config.Hotkey)
	select {
	case <-c.Hotkey.Keydown():
		select {
		case <-c.Hotkey.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return c.pass("hotkey detected")
	case <-time.After(c.HotkeyTimeout):
		return c.fail("timeout waiting for hotkey")
	case <-ctx.Done():
		return c.fail("interrupted")
	}
}

func (c *Checks) checkMicrophone(ctx context.Context) bool {
	if c.Mic == nil {
		return c.fail("no audio source")
	}
	fmt.Fprintf(c.Out, "Using device: %s\n", c.Mic.DeviceName())

	var mu sync.Mutex
	var pcm []byte
	mic, err := c.Mic.Open(func(b []byte) error {
		mu.Lock()
		pcm = append(pcm, b...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return c.fail("%v", err)
	}
	if err := mic.Start(); err != nil {
		return c.fail("%v", err)
	}
	fmt.Fprintf(c.Out, "  Recording for %s", c.RecordFor)
	select {
	case <-time.After(c.RecordFor):
	case <-ctx.Done():
	}
	mic.Finish()
	fmt.Fprintln(c.Out, " done")

	mu.Lock()
	c.recorded = pcm
	mu.Unlock()
	if len(pcm) == 0 {
		return c.fail("no audio captured")
	}
	return c.pass("captured %.1f KB", float64(len(pcm))/1024)
}

func (c *Checks) checkDeepgram(ctx context.Context) bool {
	if c.Dialer == nil {
		return c.fail("no recognition client")
	}
	conn, err := c.Dialer.Dial(ctx)
	if err != nil {
		return c.fail("%v", err)
	}

	events := make(chan []string, 1)
	go func() {
		var heard []string
		for ev := range conn.Events() {
			if t, ok := ev.(transcriber.Transcript); ok && t.IsFinal && strings.TrimSpace(t.Text) != "" {
				heard = append(heard, t.Text)
			}
		}
		events <- heard
	}()

	audioData := c.recorded
	if len(audioData) == 0 {
		audioData = make([]byte, c.Config.Deepgram.SampleRate*2)
	}
	const chunk = 3200
	for i := 0; i < len(audioData); i += chunk {
		if err := conn.Send(audioData[i:min(i+chunk, len(audioData))]); err != nil {
			conn.Finish()
			return c.fail("send audio: %v", err)
		}
	}
	if err := conn.Finish(); err != nil {
		return c.fail("close stream: %v", err)
	}

	var heard []string
	select {
	case heard = <-events:
	case <-time.After(10 * time.Second):
		return c.fail("timeout waiting for results")
	}
	text := strings.Join(heard, " ")
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Fprintf(c.Out, "  Transcribed text: %s\n", text)
	return c.pass("handshake and stream close succeeded")
}

func (c *Checks) checkTyping(ctx context.Context) bool {
	if c.Typer == nil {
		fmt.Fprintln(c.Out, "  SKIP: no keyboard")
		return true
	}
	fmt.Fprintln(c.Out, "Focus on a text editor window...")
	if c.Countdown > 0 {
		for i := int(c.Countdown / time.Second); i > 0; i-- {
			fmt.Fprintf(c.Out, "  %d...\n", i)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return c.fail("interrupted")
			}
		}
	}
	if err := c.Typer.Type(testPhrase); err != nil {
		return c.fail("type: %v", err)
	}

	resetTerminal()
	fmt.Fprintf(c.Out, "\nDid the text %q appear? [y/n]: ", testPhrase)
	answer, _ := c.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "y" && answer != "yes" {
		return c.fail("typing not confirmed")
	}
	return c.pass("typing verified by user")
}
