package gpu

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ComputeApp is one process holding a GPU compute context.
type ComputeApp struct {
	PID           int    `json:"pid"`
	ProcessName   string `json:"process_name"`
	UsedMemoryMiB int    `json:"used_memory_mib"`
}

// Querier lists processes currently holding GPU compute contexts.
type Querier interface {
	ComputeApps(ctx context.Context) ([]ComputeApp, error)
}

// ErrUnavailable means the accounting tool is not installed.
var ErrUnavailable = errors.New("gpu accounting unavailable")

// NvidiaSMI queries nvidia-smi. Bin defaults to "nvidia-smi" on PATH.
type NvidiaSMI struct {
	Bin string
}

func (n NvidiaSMI) ComputeApps(ctx context.Context) ([]ComputeApp, error) {
	bin := n.Bin
	if bin == "" {
		bin = "nvidia-smi"
	}
	cmd := exec.CommandContext(ctx, bin,
		"--query-compute-apps=pid,process_name,used_gpu_memory",
		"--format=csv,noheader,nounits",
	)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrUnavailable
		}
		var pe *exec.Error
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, pe)
		}
		return nil, fmt.Errorf("nvidia-smi: %w", err)
	}
	return ParseComputeApps(string(out)), nil
}

// ParseComputeApps parses "pid, name, mem" CSV lines. Malformed lines are skipped.
func ParseComputeApps(output string) []ComputeApp {
	text := strings.TrimSpace(output)
	if text == "" {
		return nil
	}
	var apps []ComputeApp
	for _, line := range strings.Split(text, "\n") {
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		// process names may contain commas; memory is always last
		mem, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
		if err != nil {
			continue
		}
		name := strings.TrimSpace(strings.Join(parts[1:len(parts)-1], ","))
		apps = append(apps, ComputeApp{PID: pid, ProcessName: name, UsedMemoryMiB: mem})
	}
	return apps
}
