package supervisor

import (
	"context"
	"time"
)

// Backoff is the delay before restart attempt n (n >= 1): 2^n units, capped.
func Backoff(n int, unit, limit time.Duration) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > 30 {
		return limit
	}
	d := unit * time.Duration(1<<uint(n))
	if d > limit || d <= 0 {
		return limit
	}
	return d
}

// Monitor checks the backend every MonitorInterval and restarts it after a
// crash until ctx ends.
func (s *Supervisor) Monitor(ctx context.Context) error {
	t := time.NewTicker(s.cfg.MonitorInterval)
	defer t.Stop()
	s.log.Info().Dur("interval", s.cfg.MonitorInterval).Msg("monitor started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("monitor stopped")
			return nil
		case <-t.C:
			s.checkOnce(ctx)
		}
	}
}

// needsRestart: a configuration was started before, nobody stopped it on
// purpose, and no live process exists. A nil process also covers retrying
// after a failed restart, which already tore the previous one down.
// Caller holds opMu.
func (s *Supervisor) needsRestart() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeConfigRef != "" && !s.stopped && !s.closed && (s.proc == nil || exited(s.proc))
}

// checkOnce performs one monitor tick. It reports whether a restart was attempted.
func (s *Supervisor) checkOnce(ctx context.Context) bool {
	s.opMu.Lock()
	if !s.needsRestart() {
		s.opMu.Unlock()
		return false
	}
	s.mu.Lock()
	s.restartFailCount = min(s.restartFailCount+1, s.cfg.MaxFailCount)
	n := s.restartFailCount
	ref := s.activeConfigRef
	model := s.activeModelPath
	var crash *ProcessCrashError
	if s.proc != nil {
		crash = &ProcessCrashError{PID: s.proc.PID(), ExitCode: s.proc.ExitCode()}
	}
	s.phase = PhaseBackoff
	s.mu.Unlock()
	restartFailGauge.Set(float64(n))

	if crash != nil {
		crashesTotal.Inc()
		backendUp.Set(0)
		s.publish(EventCrash, model, map[string]any{"pid": crash.PID, "exit_code": crash.ExitCode})
		s.recordFailure(crash.Error() + "\n" + s.stderrTail())
	}
	backoff := Backoff(n, s.cfg.BackoffUnit, s.cfg.MaxBackoff)
	s.opMu.Unlock()

	ev := s.log.Warn().Str("config", ref).Int("fail_count", n).Dur("backoff", backoff)
	if crash != nil {
		ev = ev.Err(crash)
	}
	ev.Msg("backend down; restarting after backoff")
	if !s.sleep(ctx, backoff) {
		return false
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	if !s.needsRestart() {
		s.log.Info().Msg("restart no longer needed")
		return false
	}
	s.mu.RLock()
	ref = s.activeConfigRef
	s.mu.RUnlock()
	restartsTotal.Inc()
	s.publish(EventRestart, model, map[string]any{"config": ref, "fail_count": n})
	// restarts always use the document's model, never a prior override
	if _, err := s.startLocked(ctx, ref, ""); err != nil {
		s.log.Error().Err(err).Str("config", ref).Msg("restart failed")
		return true
	}
	s.log.Info().Str("config", ref).Msg("backend restarted")
	return true
}
