package supervisor

import (
	"time"

	"llamaswitch/pkg/types"
)

// Phase is the supervisor lifecycle state.
type Phase string

const (
	PhaseStopped          Phase = "stopped"
	PhaseStarting         Phase = "starting"
	PhaseFallbackStarting Phase = "fallback_starting"
	PhaseReady            Phase = "ready"
	PhaseRunning          Phase = "running"
	PhaseCrashed          Phase = "crashed"
	PhaseBackoff          Phase = "backoff"
	PhaseStopping         Phase = "stopping"
)

// Status returns a consistent snapshot of the supervisor state.
func (s *Supervisor) Status() types.StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	phase := s.phase
	out := types.StatusResponse{
		ActiveConfig:     s.activeConfigRef,
		ModelPath:        s.activeModelPath,
		Variant:          s.activeVariant,
		RestartFailCount: s.restartFailCount,
		Inflight:         s.inflight.Load(),
		LastStartError:   s.lastStartError,
		UptimeSeconds:    int64(time.Since(s.startTime).Seconds()),
		ServerTimeUnix:   time.Now().Unix(),
	}
	if s.proc != nil {
		out.PID = s.proc.PID()
		out.Port = s.activeConfig.Port
		if exited(s.proc) && phase == PhaseReady {
			// the monitor has not noticed yet
			phase = PhaseCrashed
		}
	}
	if phase == PhaseReady && out.Inflight > 0 {
		phase = PhaseRunning
	}
	out.Phase = string(phase)
	return out
}

// Health reports ok when a backend process is alive.
func (s *Supervisor) Health() types.HealthResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := "error"
	if s.proc != nil && !exited(s.proc) {
		status = "ok"
	}
	return types.HealthResponse{Status: status, ModelPath: s.activeModelPath}
}

// Ready is true while a backend is alive.
func (s *Supervisor) Ready() bool {
	_, ok := s.liveConfig()
	return ok
}

// LastStartError returns the latest failure diagnostic, empty after a success.
func (s *Supervisor) LastStartError() types.LastStartErrorResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.LastStartErrorResponse{Error: s.lastStartError, LogPath: s.LastStartErrorPath()}
}

// ListConfigs summarizes every known configuration.
func (s *Supervisor) ListConfigs() []types.ConfigSummary {
	s.mu.RLock()
	active := s.activeConfigRef
	live := s.proc != nil && !exited(s.proc)
	s.mu.RUnlock()
	names := s.cfg.Source.Names()
	out := make([]types.ConfigSummary, 0, len(names))
	for _, n := range names {
		doc, ok := s.cfg.Source.Get(n)
		if !ok {
			continue
		}
		out = append(out, types.ConfigSummary{
			Name:      n,
			ModelPath: doc.Backend.ModelPath,
			Port:      doc.Backend.Port,
			Family:    string(doc.Backend.Family),
			Active:    live && n == active,
		})
	}
	return out
}
