// Package session runs one dictation session at a time: it streams the
// microphone to the recognizer, types finished utterances and writes the
// session transcript when the session stops.
package session

import (
	"time"

	"voxtype/audio"
	"voxtype/clipboard"
	"voxtype/config"
	"voxtype/transcriber"
)

// State is what the UI shows.
type State struct {
	Running           bool
	Paused            bool
	HasTranscriptFile bool
	SessionID         string
	TranscriptPath    string
}

// UI is implemented by the presentation shell. ScheduleTask must not block
// and must run fn on the goroutine that issues Manager commands.
type UI interface {
	UpdateState(State)
	ScheduleTask(delay time.Duration, fn func())
	OpenFile(path string) error
}

// Capture is a started-on-demand microphone.
type Capture interface {
	Start() error
	Finish()
}

// MicOpener prepares a microphone that feeds sink and then every tap.
type MicOpener func(sink audio.Sink, taps ...func([]byte)) (Capture, error)

// MicFrom adapts an audio.Source to a MicOpener.
func MicFrom(src *audio.Source) MicOpener {
	return func(sink audio.Sink, taps ...func([]byte)) (Capture, error) {
		mic, err := src.Open(sink, taps...)
		if err != nil {
			return nil, err
		}
		return mic, nil
	}
}

// Archiver records a session's raw audio.
type Archiver interface {
	Write(pcm []byte) error
	Close() error
}

// ArchiveFunc creates an Archiver writing to path.
type ArchiveFunc func(path string) (Archiver, error)

// History indexes sessions across restarts.
type History interface {
	Begin(id string, started time.Time, transcriptPath, logPath string) (string, error)
	Finish(rowID string, ended time.Time, utterances int, saved bool) error
	LatestTranscript() (string, error)
}

type Deps struct {
	Dialer  transcriber.Dialer
	OpenMic MicOpener
	Typer   clipboard.Typer
	UI      UI

	// Optional.
	History History
	Archive ArchiveFunc
	Now     func() time.Time
}

type Config struct {
	LogDir        string
	TranscriptDir string
	SilenceLimit  time.Duration

	PollInterval        time.Duration
	WatchInterval       time.Duration
	WorkerJoinTimeout   time.Duration
	WatchdogJoinTimeout time.Duration
	DrainTimeout        time.Duration
}

const (
	defaultPollInterval        = 100 * time.Millisecond
	defaultWatchInterval       = time.Second
	defaultWorkerJoinTimeout   = 5 * time.Second
	defaultWatchdogJoinTimeout = time.Second
	defaultDrainTimeout        = 2 * time.Second
)

func ConfigFrom(c config.Config) Config {
	return Config{
		LogDir:        c.LogDir,
		TranscriptDir: c.TranscriptDir,
		SilenceLimit:  c.SilenceLimit,
	}
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	// The watchdog never checks less often than once a second.
	if c.WatchInterval <= 0 || c.WatchInterval > time.Second {
		c.WatchInterval = defaultWatchInterval
	}
	if c.WorkerJoinTimeout <= 0 {
		c.WorkerJoinTimeout = defaultWorkerJoinTimeout
	}
	if c.WatchdogJoinTimeout <= 0 {
		c.WatchdogJoinTimeout = defaultWatchdogJoinTimeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
}
