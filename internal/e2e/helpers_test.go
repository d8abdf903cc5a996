package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llamaswitch/internal/common/fsutil"
	"llamaswitch/internal/config"
	"llamaswitch/internal/httpapi"
	"llamaswitch/internal/registry"
	"llamaswitch/internal/supervisor"
	"llamaswitch/pkg/types"
)

// backend is an in-process stand-in for one llama-server process.
type backend struct {
	pid   int
	model string
	srv   *http.Server
	done  chan struct{}
	once  sync.Once
	code  atomic.Int32
}

func (b *backend) exit(code int) {
	b.once.Do(func() {
		b.code.Store(int32(code))
		if b.srv != nil {
			_ = b.srv.Close()
		}
		close(b.done)
	})
}

func (b *backend) PID() int              { return b.pid }
func (b *backend) Done() <-chan struct{} { return b.done }
func (b *backend) Terminate() error      { b.exit(0); return nil }
func (b *backend) Kill() error           { b.exit(137); return nil }
func (b *backend) ExitCode() int {
	select {
	case <-b.done:
		return int(b.code.Load())
	default:
		return -1
	}
}

// inProcSpawner serves /health and /completion on the port from the argv.
// Launches whose --ctx-size is listed in failCtx write a CUDA error to the
// stderr log and exit at once.
type inProcSpawner struct {
	logDir  string
	failCtx map[string]bool

	mu    sync.Mutex
	procs []*backend
}

func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func (s *inProcSpawner) Spawn(c supervisor.Command) (supervisor.Process, error) {
	model := argValue(c.Args, "--model")
	ctxSize := argValue(c.Args, "--ctx-size")
	s.mu.Lock()
	b := &backend{pid: 40000 + len(s.procs), model: model, done: make(chan struct{})}
	s.procs = append(s.procs, b)
	fail := s.failCtx[ctxSize]
	s.mu.Unlock()

	if fail {
		f, err := fsutil.OpenAppend(filepath.Join(s.logDir, supervisor.StderrLogName))
		if err == nil {
			_, _ = f.WriteString("llama_init_from_model: ctx " + ctxSize + "\nCUDA error: out of memory\n")
			_ = f.Close()
		}
		b.exit(1)
		return b, nil
	}

	ln, err := net.Listen("tcp", "127.0.0.1:"+argValue(c.Args, "--port"))
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req types.BackendCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":     "ok from " + model,
			"n_predict":   req.NPredict,
			"temperature": req.Temperature,
			"ctx_size":    ctxSize,
		})
	})
	b.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = b.srv.Serve(ln) }()
	return b, nil
}

func (s *inProcSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

func (s *inProcSpawner) at(i int) *backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 {
		i += len(s.procs)
	}
	if i < 0 || i >= len(s.procs) {
		return nil
	}
	return s.procs[i]
}

func (s *inProcSpawner) last() *backend { return s.at(-1) }

type freeGate struct{}

func (freeGate) WaitFree(context.Context, time.Duration, time.Duration) bool { return true }

type emptyTable struct{}

func (emptyTable) List() ([]supervisor.ProcInfo, error) { return nil, nil }
func (emptyTable) Kill(int) error                       { return nil }

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func qwenDoc(t *testing.T, fallbacks ...config.Variant) config.BackendDocument {
	return config.NewDocument("qwen", config.BackendConfig{
		ModelPath: "/models/qwen2.5-coder-7b-q4_k_m.gguf",
		Port:      freePort(t),
		CtxSize:   8192,
		GPULayers: 99,
		CacheK:    "q8_0",
		CacheV:    "q8_0",
		Temp:      0.2,
		NPredict:  128,
	}, fallbacks...)
}

func mistralDoc(t *testing.T, fallbacks ...config.Variant) config.BackendDocument {
	return config.NewDocument("mistral", config.BackendConfig{
		ModelPath: "/models/mistral-7b-instruct-q4_k_m.gguf",
		Port:      freePort(t),
		CtxSize:   4096,
		GPULayers: 33,
		Temp:      0.7,
	}, fallbacks...)
}

type stack struct {
	srv     *httptest.Server
	sup     *supervisor.Supervisor
	spawner *inProcSpawner
	events  *supervisor.MemoryPublisher
	logDir  string
}

// newStack wires registry, supervisor and HTTP API the way serve does, with
// in-process backends.
func newStack(t *testing.T, failCtx map[string]bool, docs ...config.BackendDocument) *stack {
	t.Helper()
	logDir := t.TempDir()
	sp := &inProcSpawner{logDir: logDir, failCtx: failCtx}
	events := supervisor.NewMemoryPublisher()
	sup := supervisor.New(supervisor.Config{
		Source:          registry.New(docs...),
		LogDir:          logDir,
		Logger:          zerolog.Nop(),
		Gate:            freeGate{},
		Spawner:         sp,
		Procs:           emptyTable{},
		Publisher:       events,
		ReadyAttempts:   20,
		ReadyInterval:   10 * time.Millisecond,
		StopGrace:       time.Second,
		FailedStopGrace: 100 * time.Millisecond,
		ShutdownGrace:   time.Second,
		MonitorInterval: 10 * time.Millisecond,
		BackoffUnit:     time.Millisecond,
		MaxBackoff:      10 * time.Millisecond,
	})
	srv := httptest.NewServer(httpapi.NewMux(sup))
	t.Cleanup(func() {
		srv.Close()
		sup.Shutdown()
	})
	return &stack{srv: srv, sup: sup, spawner: sp, events: events, logDir: logDir}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func decodeJSON(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("json: %v body=%s", err, string(body))
	}
}

func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

