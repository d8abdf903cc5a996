package supervisor

import (
	"context"
	"os"
	"strings"

	"github.com/prometheus/procfs"

	"llamaswitch/pkg/types"
)

// ProcInfo is one entry of the host process table.
type ProcInfo struct {
	PID     int
	Name    string
	Cmdline string
}

// ProcessTable lists and kills host processes.
type ProcessTable interface {
	List() ([]ProcInfo, error)
	Kill(pid int) error
}

// procfsTable reads /proc. Processes that vanish mid-scan are skipped.
type procfsTable struct{}

func (procfsTable) List() ([]ProcInfo, error) {
	procs, err := procfs.AllProcs()
	if err != nil {
		return nil, err
	}
	out := make([]ProcInfo, 0, len(procs))
	for _, p := range procs {
		comm, err := p.Comm()
		if err != nil {
			continue
		}
		args, _ := p.CmdLine()
		out = append(out, ProcInfo{PID: p.PID, Name: comm, Cmdline: strings.Join(args, " ")})
	}
	return out, nil
}

func (procfsTable) Kill(pid int) error { return killPID(pid) }

// StopAll stops the managed backend, disables automatic restarts, and kills
// stray llama-server processes or anything running from the workspace. The
// next completion request re-enables the supervisor.
func (s *Supervisor) StopAll(ctx context.Context) types.StopAllResponse {
	out := types.StopAllResponse{Stopped: []types.StoppedProcess{}}

	s.opMu.Lock()
	s.mu.Lock()
	s.stopped = true
	p := s.proc
	s.mu.Unlock()
	managed := 0
	if p != nil && !exited(p) {
		managed = p.PID()
	}
	s.stopLocked(s.cfg.StopGrace)
	s.opMu.Unlock()
	if managed != 0 {
		out.Stopped = append(out.Stopped, types.StoppedProcess{PID: managed, Name: "llama-server"})
	}

	procs, err := s.cfg.Procs.List()
	if err != nil {
		s.log.Warn().Err(err).Msg("process scan failed")
		return out
	}
	self := os.Getpid()
	for _, pi := range procs {
		if ctx.Err() != nil {
			break
		}
		if pi.PID == self || pi.PID == managed || !s.isProjectProcess(pi) {
			continue
		}
		if err := s.cfg.Procs.Kill(pi.PID); err != nil {
			s.log.Warn().Err(err).Int("pid", pi.PID).Str("name", pi.Name).Msg("kill failed")
			continue
		}
		s.log.Info().Int("pid", pi.PID).Str("name", pi.Name).Msg("killed project process")
		out.Stopped = append(out.Stopped, types.StoppedProcess{PID: pi.PID, Name: pi.Name})
	}
	return out
}

// isProjectProcess matches by name or workspace path. Processes without a
// command line (kernel threads, zombies) never match.
func (s *Supervisor) isProjectProcess(p ProcInfo) bool {
	if strings.TrimSpace(p.Cmdline) == "" {
		return false
	}
	if strings.Contains(strings.ToLower(p.Name), "llama-server") {
		return true
	}
	ws := strings.ToLower(strings.TrimSpace(s.cfg.WorkspaceDir))
	return ws != "" && strings.Contains(strings.ToLower(p.Cmdline), ws)
}
