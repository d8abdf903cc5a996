package supervisor

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"llamaswitch/internal/config"
	"llamaswitch/internal/gpu"
)

// Log file names inside Config.LogDir.
const (
	StdoutLogName       = "llama_stdout.log"
	StderrLogName       = "llama_stderr.log"
	LastStartErrLogName = "last_start_error.log"
)

// Source resolves configuration names to documents.
type Source interface {
	Get(name string) (config.BackendDocument, bool)
	Names() []string
}

// Gate decides whether the GPU is free enough to launch.
type Gate interface {
	WaitFree(ctx context.Context, timeout, poll time.Duration) bool
}

// Config wires a Supervisor. Zero timings take the defaults below.
type Config struct {
	Source        Source
	DefaultConfig string
	// ModelMap maps lowercase request model names to configuration names.
	ModelMap     map[string]string
	LogDir       string
	WorkspaceDir string

	Logger    zerolog.Logger
	Gate      Gate
	Spawner   Spawner
	Prober    Prober
	Procs     ProcessTable
	Publisher EventPublisher
	Client    *http.Client

	GPUWait         time.Duration
	GPUPoll         time.Duration
	ReadyAttempts   int
	ReadyInterval   time.Duration
	StopGrace       time.Duration
	FailedStopGrace time.Duration
	ShutdownGrace   time.Duration
	MonitorInterval time.Duration
	BackoffUnit     time.Duration
	MaxBackoff      time.Duration
	MaxFailCount    int
	TailLines       int
}

// Defaults.
const (
	DefaultGPUWait         = 30 * time.Second
	DefaultGPUPoll         = time.Second
	DefaultReadyAttempts   = 12
	DefaultReadyInterval   = time.Second
	DefaultStopGrace       = 15 * time.Second
	DefaultFailedStopGrace = 5 * time.Second
	DefaultShutdownGrace   = 10 * time.Second
	DefaultMonitorInterval = 3 * time.Second
	DefaultBackoffUnit     = time.Second
	DefaultMaxBackoff      = 60 * time.Second
	DefaultMaxFailCount    = 10
	DefaultTailLines       = 300
)

func (c *Config) applyDefaults() {
	if c.DefaultConfig == "" {
		c.DefaultConfig = "qwen"
	}
	if c.ModelMap == nil {
		c.ModelMap = config.DefaultModelMap()
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.Gate == nil {
		c.Gate = gpu.NewGate(nil, c.Logger)
	}
	if c.Spawner == nil {
		c.Spawner = ExecSpawner{
			StdoutPath: filepath.Join(c.LogDir, StdoutLogName),
			StderrPath: filepath.Join(c.LogDir, StderrLogName),
		}
	}
	if c.Client == nil {
		// Timeout stays zero: every call carries its own context.
		c.Client = &http.Client{Timeout: 0}
	}
	if c.Prober == nil {
		c.Prober = HTTPProber{Client: c.Client}
	}
	if c.Procs == nil {
		c.Procs = procfsTable{}
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	setDur := func(d *time.Duration, def time.Duration) {
		if *d <= 0 {
			*d = def
		}
	}
	setDur(&c.GPUWait, DefaultGPUWait)
	setDur(&c.GPUPoll, DefaultGPUPoll)
	setDur(&c.ReadyInterval, DefaultReadyInterval)
	setDur(&c.StopGrace, DefaultStopGrace)
	setDur(&c.FailedStopGrace, DefaultFailedStopGrace)
	setDur(&c.ShutdownGrace, DefaultShutdownGrace)
	setDur(&c.MonitorInterval, DefaultMonitorInterval)
	setDur(&c.BackoffUnit, DefaultBackoffUnit)
	setDur(&c.MaxBackoff, DefaultMaxBackoff)
	if c.ReadyAttempts <= 0 {
		c.ReadyAttempts = DefaultReadyAttempts
	}
	if c.MaxFailCount <= 0 {
		c.MaxFailCount = DefaultMaxFailCount
	}
	if c.TailLines <= 0 {
		c.TailLines = DefaultTailLines
	}
}

// Supervisor owns at most one llama-server process.
type Supervisor struct {
	cfg Config
	log zerolog.Logger

	// opMu serializes start, stop and restart.
	opMu sync.Mutex

	// mu guards the fields below; writers also hold opMu.
	mu               sync.RWMutex
	proc             Process
	activeModelPath  string
	activeConfigRef  string
	activeConfig     config.BackendConfig
	activeVariant    string
	lastStartError   string
	restartFailCount int
	phase            Phase
	stopped          bool // stop-all; cleared by the next successful launch
	closed           bool // Shutdown; never cleared

	inflight  atomic.Int64
	startTime time.Time

	// sleep waits d or until ctx ends; false means ctx ended.
	sleep func(ctx context.Context, d time.Duration) bool
}

// New builds a Supervisor. No process is started.
func New(cfg Config) *Supervisor {
	cfg.applyDefaults()
	return &Supervisor{
		cfg:       cfg,
		log:       cfg.Logger.With().Str("component", "supervisor").Logger(),
		phase:     PhaseStopped,
		startTime: time.Now(),
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ResolveConfig maps a request model name to a configuration name. Unknown
// or empty names resolve to the default configuration.
func (s *Supervisor) ResolveConfig(model string) string {
	if ref, ok := s.cfg.ModelMap[strings.ToLower(strings.TrimSpace(model))]; ok {
		return ref
	}
	return s.cfg.DefaultConfig
}

// DefaultConfig is the configuration started at boot.
func (s *Supervisor) DefaultConfig() string { return s.cfg.DefaultConfig }

// LastStartErrorPath is where the latest failure diagnostic is persisted.
func (s *Supervisor) LastStartErrorPath() string {
	return filepath.Join(s.cfg.LogDir, LastStartErrLogName)
}

func (s *Supervisor) stderrLogPath() string {
	return filepath.Join(s.cfg.LogDir, StderrLogName)
}

func (s *Supervisor) publish(name, model string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	s.cfg.Publisher.Publish(Event{Name: name, Model: model, Fields: fields})
}

func (s *Supervisor) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Supervisor) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Supervisor) activeModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeModelPath
}

// liveConfig returns the active backend config when its process is alive.
func (s *Supervisor) liveConfig() (config.BackendConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.proc == nil || exited(s.proc) {
		return config.BackendConfig{}, false
	}
	return s.activeConfig, true
}

// Shutdown stops the backend for good. Later launches fail with ErrClosed.
func (s *Supervisor) Shutdown() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	s.stopped = true
	s.closed = true
	s.mu.Unlock()
	s.stopLocked(s.cfg.ShutdownGrace)
}
