// Package gpu decides whether the GPU is free for a new inference backend.
//
// The gate fails open: when the accounting tool is missing or errors, the GPU
// is reported free and the cause is logged. A cancelled context never reads
// as free.
package gpu

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Gate polls a Querier until no compute apps remain.
type Gate struct {
	q   Querier
	log zerolog.Logger
}

// NewGate builds a gate. A nil querier means nvidia-smi on PATH.
func NewGate(q Querier, log zerolog.Logger) *Gate {
	if q == nil {
		q = NvidiaSMI{}
	}
	return &Gate{q: q, log: log.With().Str("component", "gpu_gate").Logger()}
}

// Busy reports the current compute apps. Query failures read as free.
func (g *Gate) Busy(ctx context.Context) []ComputeApp {
	qctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	apps, err := g.q.ComputeApps(qctx)
	if err != nil {
		ev := g.log.Warn()
		if errors.Is(err, ErrUnavailable) {
			ev = g.log.Debug()
		}
		ev.Err(err).Msg("gpu query failed; treating gpu as free")
		return nil
	}
	return apps
}

// WaitFree returns true as soon as the GPU has no compute apps, or false once
// timeout elapses while it is still busy or ctx ends.
func (g *Gate) WaitFree(ctx context.Context, timeout, poll time.Duration) bool {
	if poll <= 0 {
		poll = time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		if ctx.Err() != nil {
			return false
		}
		apps := g.Busy(ctx)
		if ctx.Err() != nil {
			return false
		}
		if len(apps) == 0 {
			return true
		}
		if !time.Now().Add(poll).Before(deadline) {
			g.logBusy(apps)
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(poll):
		}
	}
}

func (g *Gate) logBusy(apps []ComputeApp) {
	for _, a := range apps {
		g.log.Warn().
			Int("pid", a.PID).
			Str("process", a.ProcessName).
			Str("used", humanize.IBytes(uint64(a.UsedMemoryMiB)*1024*1024)).
			Msg("gpu still busy")
	}
}
