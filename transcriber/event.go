package transcriber

import "fmt"

// Event is one of Open, Transcript, UtteranceEnd, SpeechStarted, Metadata,
// Close, Error or Unhandled.
type Event interface {
	event()
}

type Open struct{}

// Transcript is a recognition result. IsFinal marks text that will not be
// revised; SpeechFinal additionally marks the end of an utterance.
type Transcript struct {
	Text        string
	Confidence  float64
	IsFinal     bool
	SpeechFinal bool
}

type UtteranceEnd struct {
	LastWordEnd float64
}

type SpeechStarted struct {
	Timestamp float64
}

type Metadata struct {
	RequestID string
	Duration  float64
}

type Close struct {
	Reason string
}

type Error struct {
	Err error
}

type Unhandled struct {
	Type string
	Raw  []byte
}

func (Open) event()          {}
func (Transcript) event()    {}
func (UtteranceEnd) event()  {}
func (SpeechStarted) event() {}
func (Metadata) event()      {}
func (Close) event()         {}
func (Error) event()         {}
func (Unhandled) event()     {}

func (e Error) String() string { return fmt.Sprintf("error: %v", e.Err) }
