package supervisor

import (
	"context"
	"fmt"

	"llamaswitch/internal/config"
)

// runFallbacks tries each variant of doc in order after the primary launch
// failed. The first ready variant is committed. Caller holds opMu.
func (s *Supervisor) runFallbacks(ctx context.Context, ref string, doc config.BackendDocument, base config.BackendConfig, primary error) (LaunchResult, error) {
	variants := doc.Variants(base)
	last := primary
	if len(variants) > 0 {
		s.setPhase(PhaseFallbackStarting)
	}
	for i, v := range variants {
		if ctx.Err() != nil {
			return s.cancelled(ref, ctx.Err())
		}
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("fallback-%d", i+1)
		}
		cfg := base.Apply(v).ApplyFamilyDefaults()
		fallbackAttempts.WithLabelValues(name).Inc()
		s.publish(EventFallbackAttempt, cfg.ModelPath, map[string]any{"variant": name, "index": i})
		if err := cfg.Validate(); err != nil {
			s.log.Warn().Err(err).Str("variant", name).Msg("skipping invalid fallback")
			s.recordFailure(fmt.Sprintf("fallback %s rejected: %v", name, err))
			last = err
			continue
		}
		res, err := s.launchOnce(ctx, ref, cfg, name)
		if err == nil {
			s.log.Info().Str("config", ref).Str("variant", name).Msg("fallback succeeded")
			s.commit(ref, res)
			return res, nil
		}
		if ctx.Err() != nil {
			return s.cancelled(ref, ctx.Err())
		}
		s.recordFailure(res.Diagnostic)
		last = err
	}
	s.setPhase(PhaseStopped)
	launchesTotal.WithLabelValues("failed").Inc()
	s.log.Error().Err(last).Str("config", ref).Int("fallbacks", len(variants)).Msg("all launch attempts failed")
	return LaunchResult{Config: ref, Diagnostic: s.LastStartError().Error}, fmt.Errorf("start %s: all %d attempts failed: %w", ref, len(variants)+1, last)
}
