package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"voxtype/log"
	"voxtype/transcript"
)

const idFormat = "20060102_150405"

type session struct {
	id             string
	historyID      string
	started        time.Time
	logPath        string
	transcriptPath string

	rec     *recognizer
	clock   *silenceClock
	archive Archiver

	cancel       context.CancelFunc
	group        *errgroup.Group
	workerDone   chan struct{}
	watchdogDone chan struct{}
}

// Manager owns the session lifecycle. Start, Stop, Toggle, TogglePause,
// ViewTranscript and Close are meant to be called from the UI goroutine,
// which is also where scheduled tasks run; State is safe from anywhere.
type Manager struct {
	cfg  Config
	deps Deps

	op sync.Mutex

	mu             sync.Mutex
	cur            *session
	lastTranscript string
}

func New(cfg Config, deps Deps) (*Manager, error) {
	switch {
	case deps.Dialer == nil:
		return nil, errors.New("session: dialer is required")
	case deps.OpenMic == nil:
		return nil, errors.New("session: microphone is required")
	case deps.Typer == nil:
		return nil, errors.New("session: typer is required")
	case deps.UI == nil:
		return nil, errors.New("session: UI is required")
	}
	if cfg.SilenceLimit <= 0 {
		return nil, fmt.Errorf("session: silence limit must be positive, got %s", cfg.SilenceLimit)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	cfg.applyDefaults()
	return &Manager{cfg: cfg, deps: deps}, nil
}

func (m *Manager) current() *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

func (m *Manager) State() State {
	m.mu.Lock()
	s, last := m.cur, m.lastTranscript
	m.mu.Unlock()

	st := State{TranscriptPath: last}
	if s != nil {
		st.Running = true
		st.Paused = s.rec.Paused()
		st.SessionID = s.id
		st.TranscriptPath = s.transcriptPath
	}
	st.HasTranscriptFile = fileExists(st.TranscriptPath)
	return st
}

func (m *Manager) notify() {
	m.deps.UI.UpdateState(m.State())
}

// Toggle stops a running session or starts a new one.
func (m *Manager) Toggle() {
	if m.current() != nil {
		m.Stop()
		return
	}
	m.Start()
}

func (m *Manager) Start() {
	m.op.Lock()
	defer m.op.Unlock()

	if m.current() != nil {
		log.Warn("Transcription already running.")
		return
	}
	defer m.notify()
	if err := m.start(); err != nil {
		log.Errorf("Failed to start transcription session: %v", err)
	}
}

func (m *Manager) start() (err error) {
	attached := false
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil && attached {
			log.DetachSession()
		}
	}()

	for _, d := range []string{m.cfg.LogDir, m.cfg.TranscriptDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	now := m.deps.Now()
	s := &session{
		id:           now.Format(idFormat),
		started:      now,
		workerDone:   make(chan struct{}),
		watchdogDone: make(chan struct{}),
	}
	s.logPath = transcript.UniquePath(m.cfg.LogDir, "session", s.id, ".log")
	s.transcriptPath = transcript.UniquePath(m.cfg.TranscriptDir, "transcript", s.id, ".txt")

	if err := log.AttachSession(s.logPath); err != nil {
		return err
	}
	attached = true
	log.Info(strings.Repeat("=", 20) + " Starting Transcription Session " + strings.Repeat("=", 20))

	var taps []func([]byte)
	if m.deps.Archive != nil {
		path := strings.TrimSuffix(s.transcriptPath, ".txt") + ".flac"
		a, err := m.deps.Archive(path)
		if err != nil {
			log.Warnf("audio archive disabled for this session: %v", err)
		} else {
			s.archive = a
			taps = append(taps, archiveTap(a))
		}
	}

	s.clock = newSilenceClock(m.deps.Now)
	s.rec = newRecognizer(m.deps, s.clock, m.cfg.DrainTimeout, taps...)

	if m.deps.History != nil {
		id, herr := m.deps.History.Begin(s.id, s.started, s.transcriptPath, s.logPath)
		if herr != nil {
			log.Warnf("record session history: %v", herr)
		}
		s.historyID = id
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	s.cancel, s.group = cancel, g

	m.mu.Lock()
	m.cur = s
	m.mu.Unlock()

	g.Go(func() error { return m.runWorker(gctx, s) })
	g.Go(func() error { return m.runWatchdog(gctx, s) })

	log.SessionStart(s.id, s.transcriptPath)
	return nil
}

func archiveTap(a Archiver) func([]byte) {
	failed := false
	return func(pcm []byte) {
		if failed {
			return
		}
		if err := a.Write(pcm); err != nil {
			failed = true
			log.Warnf("audio archive: %v", err)
		}
	}
}

func (m *Manager) Stop() {
	m.op.Lock()
	defer m.op.Unlock()

	s := m.current()
	if s == nil {
		log.Warn("Transcription not running.")
		return
	}
	m.stop(s)
}

// stopSession stops s only if it is still the active session.
func (m *Manager) stopSession(s *session) {
	m.op.Lock()
	defer m.op.Unlock()

	if m.current() != s {
		log.Debugf("Ignoring stop for finished session %s", s.id)
		return
	}
	m.stop(s)
}

func (m *Manager) scheduleStop(s *session) {
	m.deps.UI.ScheduleTask(0, func() { m.stopSession(s) })
}

func (m *Manager) stop(s *session) {
	defer m.notify()

	log.Info(strings.Repeat("=", 20) + " Stopping Transcription Session " + strings.Repeat("=", 20))
	s.cancel()

	workerJoined := waitFor(s.workerDone, m.cfg.WorkerJoinTimeout)
	if !workerJoined {
		log.Warn("Transcription worker did not terminate gracefully.")
	}
	watchdogJoined := waitFor(s.watchdogDone, m.cfg.WatchdogJoinTimeout)
	if !watchdogJoined {
		log.Warn("Silence watchdog did not terminate in time.")
	}
	if workerJoined && watchdogJoined {
		if err := s.group.Wait(); err != nil {
			log.Debugf("session %s tasks ended: %v", s.id, err)
		}
	}

	utterances := s.rec.Utterances()
	saved := m.persist(s.transcriptPath, utterances)

	if s.archive != nil {
		closeArchive := func() {
			if err := s.archive.Close(); err != nil {
				log.Warnf("close audio archive: %v", err)
			}
		}
		if workerJoined {
			closeArchive()
		} else {
			go func() {
				<-s.workerDone
				closeArchive()
			}()
		}
	}

	ended := m.deps.Now()
	if m.deps.History != nil && s.historyID != "" {
		if err := m.deps.History.Finish(s.historyID, ended, len(utterances), saved); err != nil {
			log.Warnf("record session history: %v", err)
		}
	}
	log.SessionEnd(s.id, len(utterances), saved, ended.Sub(s.started))

	m.mu.Lock()
	m.cur = nil
	m.lastTranscript = s.transcriptPath
	m.mu.Unlock()

	log.DetachSession()
}

func (m *Manager) persist(path string, utterances []string) bool {
	saved, err := transcript.Save(path, utterances)
	switch {
	case err != nil:
		log.Errorf("Failed to save transcript: %v", err)
	case saved:
		log.Infof("Session transcript saved to: %s", path)
	default:
		log.Info("No transcribed text to save for this session.")
	}
	return saved
}

func (m *Manager) TogglePause() {
	m.op.Lock()
	defer m.op.Unlock()

	s := m.current()
	if s == nil {
		return
	}
	paused := !s.rec.Paused()
	s.rec.Pause(paused)
	if paused {
		log.Info("Transcription paused")
	} else {
		log.Info("Transcription resumed")
	}
	m.notify()
}

// ViewTranscript opens the current or most recent transcript.
func (m *Manager) ViewTranscript() {
	path := m.State().TranscriptPath
	if path == "" && m.deps.History != nil {
		p, err := m.deps.History.LatestTranscript()
		if err != nil {
			log.Warnf("look up last transcript: %v", err)
		}
		path = p
	}
	if !fileExists(path) {
		log.Warn("No transcript available for the current/last session.")
		return
	}
	log.Infof("Opening transcript file: %s", path)
	if err := m.deps.UI.OpenFile(path); err != nil {
		log.Errorf("Failed to open transcript file: %v", err)
	}
}

// Close stops any running session.
func (m *Manager) Close() {
	if m.current() != nil {
		m.Stop()
	}
}

func waitFor(done <-chan struct{}, timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	fi, err := os.Stat(filepath.Clean(path))
	return err == nil && !fi.IsDir()
}
