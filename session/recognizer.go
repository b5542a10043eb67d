package session

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"voxtype/clipboard"
	"voxtype/log"
	"voxtype/transcriber"
	"voxtype/transcript"
)

// recognizer ties one recognition stream to one microphone. Start and Stop
// are called from the worker goroutine; events are handled on a single
// consumer goroutine.
type recognizer struct {
	dialer  transcriber.Dialer
	openMic MicOpener
	typer   clipboard.Typer
	clock   *silenceClock
	taps    []func([]byte)
	drain   time.Duration

	paused atomic.Bool
	buf    transcript.Buffer

	conn     transcriber.Conn
	mic      Capture
	consumed chan struct{}
}

func newRecognizer(d Deps, clock *silenceClock, drain time.Duration, taps ...func([]byte)) *recognizer {
	return &recognizer{
		dialer:  d.Dialer,
		openMic: d.OpenMic,
		typer:   d.Typer,
		clock:   clock,
		taps:    taps,
		drain:   drain,
	}
}

// Start connects, begins consuming events and starts the microphone.
// Failures are logged and reported as false.
func (r *recognizer) Start(ctx context.Context) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("recognizer setup panic: %v", p)
			ok = false
		}
		if !ok {
			r.teardown()
		}
	}()

	conn, err := r.dialer.Dial(ctx)
	if err != nil {
		log.Errorf("connect to Deepgram: %v", err)
		return false
	}
	r.conn = conn
	r.consumed = make(chan struct{})
	go r.consume(conn.Events(), r.consumed)

	mic, err := r.openMic(conn.Send, r.taps...)
	if err != nil {
		log.Errorf("open microphone: %v", err)
		return false
	}
	r.mic = mic
	if err := mic.Start(); err != nil {
		log.Errorf("start microphone: %v", err)
		return false
	}
	log.Info("Microphone streaming to Deepgram")
	return true
}

func (r *recognizer) Pause(paused bool) {
	r.paused.Store(paused)
}

func (r *recognizer) Paused() bool {
	return r.paused.Load()
}

func (r *recognizer) IsConnected() bool {
	return r.conn != nil && r.conn.IsConnected()
}

// Stop finishes the microphone, then the connection, waits for the
// consumer to drain and returns the session's utterances.
func (r *recognizer) Stop() []string {
	r.teardown()
	return r.buf.Utterances()
}

func (r *recognizer) Utterances() []string {
	return r.buf.Utterances()
}

func (r *recognizer) teardown() {
	if r.mic != nil {
		r.mic.Finish()
		r.mic = nil
	}
	if r.conn == nil {
		return
	}
	if err := r.conn.Finish(); err != nil {
		log.Warnf("finish Deepgram stream: %v", err)
	}
	select {
	case <-r.consumed:
	case <-time.After(r.drain):
		log.Warn("Deepgram events did not drain in time")
	}
	r.conn = nil
}

func (r *recognizer) consume(events <-chan transcriber.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		r.handle(ev)
	}
}

func (r *recognizer) handle(ev transcriber.Event) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Error processing %T: %v", ev, p)
		}
	}()

	switch e := ev.(type) {
	case transcriber.Transcript:
		if r.paused.Load() {
			return
		}
		if e.Text != "" {
			r.clock.Touch()
		}
		if !e.IsFinal {
			return
		}
		r.buf.AddFragment(e.Text)
		if e.SpeechFinal {
			r.flush("speech final")
		}
	case transcriber.UtteranceEnd:
		if r.paused.Load() {
			return
		}
		if r.buf.PendingLen() > 0 {
			r.flush("utterance end")
		}
		r.clock.Touch()
	case transcriber.SpeechStarted:
		if r.paused.Load() {
			return
		}
		log.Debugf("Speech started")
		r.clock.Touch()
	case transcriber.Open:
		log.Info("Deepgram connection open")
	case transcriber.Close:
		log.Infof("Deepgram connection closed: %s", e.Reason)
	case transcriber.Metadata:
		log.Debugf("Metadata: request %s, %.2fs", e.RequestID, e.Duration)
	case transcriber.Error:
		log.Errorf("Deepgram error: %v", e.Err)
	case transcriber.Unhandled:
		log.Warnf("Unhandled websocket message %q: %s", e.Type, truncate(string(e.Raw), 200))
	default:
		panic(fmt.Sprintf("unknown event %T", ev))
	}
}

func (r *recognizer) flush(boundary string) {
	utterance, ok := r.buf.Flush()
	if !ok {
		return
	}
	log.Infof("Typing (%s): %s", boundary, utterance)
	log.Utterance(utterance)
	if err := r.typer.Type(utterance + " "); err != nil {
		log.Errorf("type utterance: %v", err)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
