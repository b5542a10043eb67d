package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voxtype/log"
)

var errConnectionLost = errors.New("recognition connection lost")

// runWorker owns the recognizer for the lifetime of s. It returns an error
// when the session ends for any reason other than cancellation, which also
// cancels the watchdog through the task group.
func (m *Manager) runWorker(ctx context.Context, s *session) (err error) {
	defer close(s.workerDone)
	stopScheduled := false
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Fatal error in transcription worker: %v", p)
			err = fmt.Errorf("transcription worker panic: %v", p)
		}
		s.rec.Stop()
		if ctx.Err() == nil && !stopScheduled {
			log.Warn("Transcription worker exited unexpectedly. Stopping session.")
			m.scheduleStop(s)
		}
	}()

	if !s.rec.Start(ctx) {
		if ctx.Err() != nil {
			return nil
		}
		log.Error("Failed to start Deepgram client")
		stopScheduled = true
		m.scheduleStop(s)
		return errors.New("recognizer failed to start")
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()
	for s.rec.IsConnected() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return errConnectionLost
}
