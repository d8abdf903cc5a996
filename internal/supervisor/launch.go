package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"llamaswitch/internal/common/fsutil"
	"llamaswitch/internal/config"
)

var (
	errNotReady    = errors.New("backend not ready")
	errExitedEarly = errors.New("backend exited before ready")
)

// LaunchResult describes one spawn attempt.
type LaunchResult struct {
	ID         string
	Config     string
	Variant    string
	OK         bool
	PID        int
	ExitCode   int
	Diagnostic string

	proc Process
	cfg  config.BackendConfig
}

// Start launches the named configuration, optionally serving modelPath
// instead of the document's model. Any running backend is stopped first.
func (s *Supervisor) Start(ctx context.Context, ref, modelPath string) (LaunchResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.startLocked(ctx, ref, modelPath)
}

// startLocked runs the full launch sequence. Caller holds opMu.
func (s *Supervisor) startLocked(ctx context.Context, ref, modelPath string) (LaunchResult, error) {
	if s.isClosed() {
		return LaunchResult{Config: ref}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return LaunchResult{Config: ref}, err
	}
	doc, ok := s.cfg.Source.Get(ref)
	if !ok {
		err := &UnknownConfigError{Name: ref}
		s.recordFailure(err.Error())
		launchesTotal.WithLabelValues("config_error").Inc()
		return LaunchResult{Config: ref}, err
	}
	cfg := doc.Backend.WithModel(modelPath)
	s.stopLocked(s.cfg.StopGrace)

	s.setPhase(PhaseStarting)
	if !s.cfg.Gate.WaitFree(ctx, s.cfg.GPUWait, s.cfg.GPUPoll) {
		if ctx.Err() != nil {
			return s.cancelled(ref, ctx.Err())
		}
		err := &ResourceBusyError{Wait: s.cfg.GPUWait}
		diag := err.Error() + "\n" + s.stderrTail()
		s.recordFailure(diag)
		s.setPhase(PhaseStopped)
		launchesTotal.WithLabelValues("gpu_busy").Inc()
		s.log.Error().Err(err).Str("config", ref).Msg("launch refused")
		return LaunchResult{Config: ref, Diagnostic: diag}, err
	}
	if err := cfg.Validate(); err != nil {
		s.recordFailure(err.Error())
		s.setPhase(PhaseStopped)
		launchesTotal.WithLabelValues("config_error").Inc()
		s.log.Error().Err(err).Str("config", ref).Msg("launch refused")
		return LaunchResult{Config: ref, Diagnostic: err.Error()}, err
	}
	cfg = cfg.ApplyFamilyDefaults()

	res, err := s.launchOnce(ctx, ref, cfg, "")
	if err == nil {
		s.commit(ref, res)
		return res, nil
	}
	if ctx.Err() != nil {
		return s.cancelled(ref, ctx.Err())
	}
	s.recordFailure(res.Diagnostic)
	s.log.Warn().Err(err).Str("config", ref).Msg("primary launch failed; trying fallbacks")
	return s.runFallbacks(ctx, ref, doc, cfg, err)
}

// cancelled ends a launch whose context is done. No fallback runs and no
// diagnostic is recorded.
func (s *Supervisor) cancelled(ref string, err error) (LaunchResult, error) {
	s.setPhase(PhaseStopped)
	launchesTotal.WithLabelValues("cancelled").Inc()
	s.log.Info().Err(err).Str("config", ref).Msg("launch cancelled")
	return LaunchResult{Config: ref}, err
}

// launchOnce spawns one backend and waits for it to become ready. On failure
// the process is terminated and the stderr tail is returned as Diagnostic.
func (s *Supervisor) launchOnce(ctx context.Context, ref string, cfg config.BackendConfig, variant string) (LaunchResult, error) {
	res := LaunchResult{ID: uuid.NewString(), Config: ref, Variant: variant, ExitCode: -1, cfg: cfg}
	cmd := Command{Path: cfg.LlamaCppPath, Args: cfg.Args(), Dir: cfg.WorkDir()}
	log := s.log.With().Str("attempt", res.ID).Str("config", ref).Str("variant", variant).Logger()
	log.Info().Str("model", cfg.ModelPath).Str("bin", cmd.Path).Strs("args", cmd.Args).Msg("starting llama-server")

	if err := ctx.Err(); err != nil {
		return res, err
	}
	started := time.Now()
	proc, err := s.cfg.Spawner.Spawn(cmd)
	if err != nil {
		res.Diagnostic = err.Error()
		s.publish(EventSpawnError, cfg.ModelPath, map[string]any{"error": err.Error(), "variant": variant})
		log.Error().Err(err).Msg("spawn failed")
		return res, err
	}
	res.PID = proc.PID()
	s.publish(EventSpawnStart, cfg.ModelPath, map[string]any{"pid": res.PID, "port": cfg.Port, "variant": variant})

	err = s.waitReady(ctx, proc, cfg.BaseURL())
	launchDuration.Observe(time.Since(started).Seconds())
	if err == nil {
		res.OK = true
		res.proc = proc
		s.publish(EventSpawnReady, cfg.ModelPath, map[string]any{"pid": res.PID, "url": cfg.BaseURL(), "variant": variant})
		log.Info().Int("pid", res.PID).Str("url", cfg.BaseURL()).Dur("took", time.Since(started)).Msg("llama-server ready")
		return res, nil
	}
	if ctx.Err() != nil {
		s.terminate(proc, s.cfg.FailedStopGrace)
		return res, ctx.Err()
	}

	rerr := &ReadinessError{URL: cfg.BaseURL(), Variant: variant, Attempts: s.cfg.ReadyAttempts}
	if errors.Is(err, errExitedEarly) {
		rerr.Exited = true
		rerr.ExitCode = proc.ExitCode()
		res.ExitCode = rerr.ExitCode
		s.publish(EventSpawnExit, cfg.ModelPath, map[string]any{"pid": res.PID, "exit_code": res.ExitCode, "before_ready": true})
	} else {
		s.publish(EventSpawnTimeout, cfg.ModelPath, map[string]any{"pid": res.PID})
	}
	s.terminate(proc, s.cfg.FailedStopGrace)
	res.Diagnostic = rerr.Error() + "\n" + s.stderrTail()
	log.Warn().Err(rerr).Int("pid", res.PID).Msg("llama-server failed to become ready")
	return res, rerr
}

// waitReady polls the prober at a fixed interval, stopping early if the
// process exits.
func (s *Supervisor) waitReady(ctx context.Context, proc Process, baseURL string) error {
	return retry.Do(
		func() error {
			if exited(proc) {
				return retry.Unrecoverable(errExitedEarly)
			}
			if s.cfg.Prober.Ready(ctx, baseURL) {
				return nil
			}
			if exited(proc) {
				return retry.Unrecoverable(errExitedEarly)
			}
			return errNotReady
		},
		retry.Attempts(uint(s.cfg.ReadyAttempts)),
		retry.Delay(s.cfg.ReadyInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

// commit publishes a successful launch as the active backend.
func (s *Supervisor) commit(ref string, res LaunchResult) {
	s.mu.Lock()
	s.proc = res.proc
	s.activeModelPath = res.cfg.ModelPath
	s.activeConfigRef = ref
	s.activeConfig = res.cfg
	s.activeVariant = res.Variant
	s.lastStartError = ""
	s.restartFailCount = 0
	s.phase = PhaseReady
	s.stopped = false
	s.mu.Unlock()
	launchesTotal.WithLabelValues("ok").Inc()
	backendUp.Set(1)
	restartFailGauge.Set(0)
}

// stopLocked terminates the current backend, if any. Caller holds opMu.
func (s *Supervisor) stopLocked(grace time.Duration) {
	s.mu.Lock()
	p := s.proc
	model := s.activeModelPath
	if p == nil {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseStopping
	s.mu.Unlock()

	s.log.Info().Int("pid", p.PID()).Str("model", model).Msg("stopping llama-server")
	s.terminate(p, grace)

	s.mu.Lock()
	s.proc = nil
	s.activeModelPath = ""
	s.activeVariant = ""
	s.activeConfig = config.BackendConfig{}
	s.phase = PhaseStopped
	s.mu.Unlock()
	backendUp.Set(0)
	s.publish(EventSpawnStop, model, map[string]any{"pid": p.PID()})
}

// terminate asks p to exit, then kills it after grace.
func (s *Supervisor) terminate(p Process, grace time.Duration) {
	if exited(p) {
		return
	}
	if err := p.Terminate(); err != nil {
		s.log.Debug().Err(err).Int("pid", p.PID()).Msg("terminate signal failed")
	}
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-p.Done():
		return
	case <-t.C:
	}
	s.log.Warn().Int("pid", p.PID()).Dur("grace", grace).Msg("llama-server ignored terminate; killing")
	if err := p.Kill(); err != nil {
		s.log.Error().Err(err).Int("pid", p.PID()).Msg("kill failed")
	}
	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		s.log.Error().Int("pid", p.PID()).Msg("llama-server still running after kill")
	}
}

// recordFailure stores diag in memory and in the last-start-error file.
func (s *Supervisor) recordFailure(diag string) {
	s.mu.Lock()
	s.lastStartError = diag
	s.mu.Unlock()
	if err := fsutil.OverwriteFile(s.LastStartErrorPath(), diag); err != nil {
		s.log.Error().Err(err).Str("path", s.LastStartErrorPath()).Msg("write last start error")
	}
}

func (s *Supervisor) stderrTail() string {
	tail, err := fsutil.TailLines(s.stderrLogPath(), s.cfg.TailLines)
	if err != nil {
		return fmt.Sprintf("(failed to read %s: %v)", s.stderrLogPath(), err)
	}
	return tail
}
