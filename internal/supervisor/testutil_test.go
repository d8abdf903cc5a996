package supervisor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llamaswitch/internal/config"
	"llamaswitch/internal/registry"
)

const (
	qwenModel    = "/models/qwen2.5-coder-7b-instruct-q4_k_m.gguf"
	mistralModel = "/models/mistral-7b-instruct-v0.2.Q4_K_M.gguf"
)

// fakeProc is an in-memory Process. Terminate exits it unless ignoreTerm is set.
type fakeProc struct {
	pid        int
	cmd        Command
	sp         *fakeSpawner
	done       chan struct{}
	once       sync.Once
	mu         sync.Mutex
	code       int
	ignoreTerm atomic.Bool
}

func (p *fakeProc) PID() int              { return p.pid }
func (p *fakeProc) Done() <-chan struct{} { return p.done }

func (p *fakeProc) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

func (p *fakeProc) Terminate() error {
	if !p.ignoreTerm.Load() {
		p.exit(0)
	}
	return nil
}

func (p *fakeProc) Kill() error {
	p.exit(137)
	return nil
}

func (p *fakeProc) exit(code int) {
	p.once.Do(func() {
		p.mu.Lock()
		p.code = code
		p.mu.Unlock()
		p.sp.alive.Add(-1)
		close(p.done)
	})
}

// fakeSpawner records commands and tracks how many fake processes are alive.
type fakeSpawner struct {
	mu          sync.Mutex
	cmds        []Command
	procs       []*fakeProc
	err         error
	exitOnSpawn map[int]int // spawn number -> immediate exit code

	alive    atomic.Int32
	maxAlive atomic.Int32
}

func (f *fakeSpawner) Spawn(c Command) (Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	n := len(f.cmds) + 1
	p := &fakeProc{pid: 1000 + n, cmd: c, sp: f, done: make(chan struct{}), code: -1}
	f.cmds = append(f.cmds, c)
	f.procs = append(f.procs, p)
	a := f.alive.Add(1)
	for {
		m := f.maxAlive.Load()
		if a <= m || f.maxAlive.CompareAndSwap(m, a) {
			break
		}
	}
	if code, ok := f.exitOnSpawn[n]; ok {
		p.exit(code)
	}
	return p, nil
}

func (f *fakeSpawner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cmds)
}

func (f *fakeSpawner) proc(i int) *fakeProc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[i]
}

func (f *fakeSpawner) last() *fakeProc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[len(f.procs)-1]
}

// fakeProber reports ready unless the current spawn number is marked failing.
type fakeProber struct {
	sp      *fakeSpawner
	mu      sync.Mutex
	fail    map[int]bool
	failAll bool
	onReady func() // called before every check; set before the launch
}

func (p *fakeProber) Ready(ctx context.Context, baseURL string) bool {
	if p.onReady != nil {
		p.onReady()
	}
	n := p.sp.count()
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.failAll && !p.fail[n]
}

func (p *fakeProber) setFail(spawns ...int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = map[int]bool{}
	for _, n := range spawns {
		p.fail[n] = true
	}
}

func (p *fakeProber) setFailAll(v bool) {
	p.mu.Lock()
	p.failAll = v
	p.mu.Unlock()
}

type fakeGate struct {
	busy  atomic.Bool
	calls atomic.Int32
}

func (g *fakeGate) WaitFree(ctx context.Context, timeout, poll time.Duration) bool {
	g.calls.Add(1)
	return !g.busy.Load()
}

type fakeTable struct {
	mu     sync.Mutex
	procs  []ProcInfo
	err    error
	killed []int
}

func (t *fakeTable) List() ([]ProcInfo, error) { return t.procs, t.err }

func (t *fakeTable) Kill(pid int) error {
	t.mu.Lock()
	t.killed = append(t.killed, pid)
	t.mu.Unlock()
	return nil
}

// fakeBackend stands in for llama-server's /completion endpoint.
type fakeBackend struct {
	srv    *httptest.Server
	mu     sync.Mutex
	last   string
	status atomic.Int32
	hold   chan struct{}
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{}
	b.status.Store(http.StatusOK)
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.last = string(body)
		hold := b.hold
		b.mu.Unlock()
		if hold != nil {
			<-hold
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(b.status.Load()))
		_, _ = w.Write([]byte(`{"content":"hello","stop":true}`))
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) port(t *testing.T) int {
	t.Helper()
	u, err := url.Parse(b.srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	p, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return p
}

func (b *fakeBackend) lastBody() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

type harness struct {
	sp      *fakeSpawner
	prober  *fakeProber
	gate    *fakeGate
	table   *fakeTable
	pub     *MemoryPublisher
	backend *fakeBackend
	logDir  string

	mu       sync.Mutex
	backoffs []time.Duration
}

func (h *harness) recordedBackoffs() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.backoffs...)
}

func qwenDoc(port int) config.BackendDocument {
	return config.NewDocument("qwen", config.BackendConfig{
		LlamaCppPath: "/opt/llama/llama-server",
		ModelPath:    qwenModel,
		Port:         port,
		CtxSize:      8192,
		BatchSize:    512,
		UBatchSize:   256,
		Parallel:     2,
		Threads:      8,
		GPULayers:    99,
		CacheK:       "q8_0",
		CacheV:       "q8_0",
		FlashAttn:    "1",
		Temp:         0.2,
		NPredict:     128,
	})
}

func mistralDoc(port int) config.BackendDocument {
	return config.NewDocument("mistral", config.BackendConfig{
		LlamaCppPath: "/opt/llama/llama-server",
		ModelPath:    mistralModel,
		Port:         port,
		CtxSize:      4096,
		GPULayers:    33,
		Temp:         0.7,
	})
}

// newHarness builds a supervisor over fakes with millisecond timings. Extra
// documents are added next to qwen and mistral.
func newHarness(t *testing.T, extra ...config.BackendDocument) (*Supervisor, *harness) {
	t.Helper()
	h := &harness{
		sp:      &fakeSpawner{},
		gate:    &fakeGate{},
		table:   &fakeTable{},
		pub:     NewMemoryPublisher(),
		backend: newFakeBackend(t),
		logDir:  t.TempDir(),
	}
	h.prober = &fakeProber{sp: h.sp}
	port := h.backend.port(t)
	docs := append([]config.BackendDocument{qwenDoc(port), mistralDoc(port)}, extra...)
	s := New(Config{
		Source:          registry.New(docs...),
		LogDir:          h.logDir,
		WorkspaceDir:    "/work/proj",
		Logger:          zerolog.Nop(),
		Gate:            h.gate,
		Spawner:         h.sp,
		Prober:          h.prober,
		Procs:           h.table,
		Publisher:       h.pub,
		GPUWait:         20 * time.Millisecond,
		GPUPoll:         time.Millisecond,
		ReadyAttempts:   3,
		ReadyInterval:   time.Millisecond,
		StopGrace:       50 * time.Millisecond,
		FailedStopGrace: 20 * time.Millisecond,
		ShutdownGrace:   50 * time.Millisecond,
		MonitorInterval: 5 * time.Millisecond,
		BackoffUnit:     time.Millisecond,
		MaxBackoff:      20 * time.Millisecond,
	})
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		h.mu.Lock()
		h.backoffs = append(h.backoffs, d)
		h.mu.Unlock()
		return ctx.Err() == nil
	}
	t.Cleanup(s.Shutdown)
	return s, h
}

func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func countEvents(pub *MemoryPublisher, name string) int {
	n := 0
	for _, e := range pub.Names() {
		if e == name {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}
