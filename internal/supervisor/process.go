package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"llamaswitch/internal/common/fsutil"
)

// Command is one llama-server invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
}

// Process is a running backend. Done is closed once the process has exited;
// ExitCode is -1 until then.
type Process interface {
	PID() int
	Done() <-chan struct{}
	ExitCode() int
	Terminate() error
	Kill() error
}

// Spawner starts backend processes.
type Spawner interface {
	Spawn(cmd Command) (Process, error)
}

// ExecSpawner starts real subprocesses in their own process group, appending
// stdout and stderr to the given log files.
type ExecSpawner struct {
	StdoutPath string
	StderrPath string
}

func (s ExecSpawner) Spawn(c Command) (Process, error) {
	stdout, err := fsutil.OpenAppend(s.StdoutPath)
	if err != nil {
		return nil, fmt.Errorf("open stdout log: %w", err)
	}
	stderr, err := fsutil.OpenAppend(s.StderrPath)
	if err != nil {
		_ = stdout.Close()
		return nil, fmt.Errorf("open stderr log: %w", err)
	}
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, fmt.Errorf("start llama-server: %w", err)
	}
	p := &osProcess{cmd: cmd, done: make(chan struct{}), code: -1}
	go func() {
		_ = cmd.Wait()
		_ = stdout.Close()
		_ = stderr.Close()
		p.mu.Lock()
		p.code = cmd.ProcessState.ExitCode()
		p.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

type osProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	mu   sync.Mutex
	code int
}

func (p *osProcess) PID() int              { return p.cmd.Process.Pid }
func (p *osProcess) Done() <-chan struct{} { return p.done }

func (p *osProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

func (p *osProcess) Terminate() error { return terminateGroup(p.cmd.Process) }
func (p *osProcess) Kill() error      { return killGroup(p.cmd.Process) }

// exited reports whether p has terminated without blocking.
func exited(p Process) bool {
	select {
	case <-p.Done():
		return true
	default:
		return false
	}
}

// killPID force-kills an unrelated process found by the project scan.
func killPID(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

// Prober answers whether a backend is ready to serve.
type Prober interface {
	Ready(ctx context.Context, baseURL string) bool
}

// HTTPProber treats a 200 from GET /health as ready.
type HTTPProber struct {
	Client  *http.Client
	Timeout time.Duration
}

func (h HTTPProber) Ready(ctx context.Context, baseURL string) bool {
	cli := h.Client
	if cli == nil {
		cli = http.DefaultClient
	}
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := cli.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
