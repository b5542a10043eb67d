package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"voxtype/log"
)

// silenceClock records when speech was last detected.
type silenceClock struct {
	now  func() time.Time
	last atomic.Int64 // unix nanos
}

func newSilenceClock(now func() time.Time) *silenceClock {
	c := &silenceClock{now: now}
	c.Touch()
	return c
}

func (c *silenceClock) Touch() {
	c.last.Store(c.now().UnixNano())
}

func (c *silenceClock) Last() time.Time {
	return time.Unix(0, c.last.Load())
}

func (c *silenceClock) Idle() time.Duration {
	return c.now().Sub(c.Last())
}

func silenceExceeded(idle, limit time.Duration, paused bool) bool {
	return !paused && idle > limit
}

// runWatchdog schedules a stop of s once no speech has been detected for
// longer than the silence limit. It never fires while paused, but pausing
// does not reset the clock, so it can fire on the first check after resume.
func (m *Manager) runWatchdog(ctx context.Context, s *session) (err error) {
	defer close(s.watchdogDone)
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("silence watchdog panic: %v", p)
			err = fmt.Errorf("silence watchdog panic: %v", p)
		}
	}()

	ticker := time.NewTicker(m.cfg.WatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if silenceExceeded(s.clock.Idle(), m.cfg.SilenceLimit, s.rec.Paused()) {
			log.Infof("Silence limit (%s) reached. Auto-stopping.", m.cfg.SilenceLimit)
			m.scheduleStop(s)
			return nil
		}
	}
}
