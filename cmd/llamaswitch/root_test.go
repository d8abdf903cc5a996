package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"llamaswitch/internal/config"
	"llamaswitch/internal/registry"
	"llamaswitch/pkg/types"
)

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestLoadSettings_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	body := "addr: 127.0.0.1:7000\nconfigs_dir: /file/configs\ndefault_config: mistral\nlog_dir: /file/logs\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LLAMASWITCH_CONFIGS_DIR", "/env/configs")
	t.Setenv("LLAMASWITCH_LOG_DIR", "/env/logs")
	t.Setenv("LLAMASWITCH_COMPLETION_TIMEOUT_SEC", "30")

	opts := &rootOptions{configPath: path}
	cmd := newServeCmd(opts)
	if err := cmd.Flags().Set("log-dir", "/flag/logs"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("cors-origins", "http://a, http://b"); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadSettings(cmd.Flags(), opts)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if cfg.Addr != "127.0.0.1:7000" || cfg.DefaultConfig != "mistral" {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.ConfigsDir != "/env/configs" {
		t.Fatalf("env should override file: %q", cfg.ConfigsDir)
	}
	if cfg.LogDir != "/flag/logs" {
		t.Fatalf("flag should override env: %q", cfg.LogDir)
	}
	if !cfg.CORSEnabled || len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b" {
		t.Fatalf("cors flags not applied: %+v", cfg)
	}
	if cfg.LogFormat != "json" || len(cfg.ModelMap) == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.CompletionTimeoutSec != 30 {
		t.Fatalf("completion timeout from env: %d", cfg.CompletionTimeoutSec)
	}
}

func TestLoadSettings_CompletionTimeoutFlag(t *testing.T) {
	t.Setenv("LLAMASWITCH_COMPLETION_TIMEOUT_SEC", "30")
	opts := &rootOptions{}
	cmd := newServeCmd(opts)
	if err := cmd.Flags().Set("completion-timeout-sec", "45"); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadSettings(cmd.Flags(), opts)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if cfg.CompletionTimeoutSec != 45 {
		t.Fatalf("flag should override env: %d", cfg.CompletionTimeoutSec)
	}
}

func TestLoadSettings_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("LLAMASWITCH_DEFAULT_CONFIG=mistral\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// register cleanup, then unset so the dotenv value is applied
	t.Setenv("LLAMASWITCH_DEFAULT_CONFIG", "")
	_ = os.Unsetenv("LLAMASWITCH_DEFAULT_CONFIG")

	opts := &rootOptions{envFile: envPath}
	cfg, err := loadSettings(newServeCmd(opts).Flags(), opts)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if cfg.DefaultConfig != "mistral" {
		t.Fatalf("dotenv value not applied: %q", cfg.DefaultConfig)
	}

	opts = &rootOptions{envFile: filepath.Join(dir, "missing.env")}
	if _, err := loadSettings(newServeCmd(opts).Flags(), opts); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}
}

func TestLoadSettings_BadFile(t *testing.T) {
	opts := &rootOptions{configPath: filepath.Join(t.TempDir(), "settings.ini")}
	if _, err := loadSettings(newServeCmd(opts).Flags(), opts); err == nil {
		t.Fatalf("expected error for unreadable settings file")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("debug", "json", &buf)
	log.Debug().Msg("visible")
	if !strings.Contains(buf.String(), `"message":"visible"`) {
		t.Fatalf("debug line missing: %q", buf.String())
	}

	buf.Reset()
	log = newLogger("nonsense", "json", &buf)
	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("unknown level should default to info: %q", buf.String())
	}
	if log.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level=%v", log.GetLevel())
	}

	buf.Reset()
	log = newLogger("info", "console", &buf)
	log.Info().Msg("pretty")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "pretty") {
		t.Fatalf("expected console output: %q", buf.String())
	}
}

func TestSupervisorConfig(t *testing.T) {
	cfg := config.Config{DefaultConfig: "qwen", GPUWaitSec: 5, MaxBackoffSec: 30, ReadyAttempts: 4}
	cfg.ApplyDefaults()
	sc := supervisorConfig(cfg, registry.New(), zerolog.Nop())
	if sc.GPUWait != 5*time.Second || sc.MaxBackoff != 30*time.Second || sc.ReadyAttempts != 4 {
		t.Fatalf("timings not mapped: %+v", sc)
	}
	if sc.StopGrace != 0 || sc.MonitorInterval != 0 {
		t.Fatalf("unset timings should stay zero for supervisor defaults")
	}
	if sc.DefaultConfig != "qwen" || sc.LogDir != "./logs" || sc.Gate == nil {
		t.Fatalf("unexpected config: %+v", sc)
	}
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	doc := `{"llama_cpp": {"modelPath": "/models/qwen2.5-coder-7b-q4_k_m.gguf", "port": 8081, "gpuLayers": 99}}`
	if err := os.WriteFile(filepath.Join(dir, "qwen.json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "show", "--env-file", "", "--configs-dir", dir, "--default-config", "qwen"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "# settings") || !strings.Contains(s, "configs_dir: "+dir) {
		t.Fatalf("settings missing: %q", s)
	}
	if !strings.Contains(s, "qwen (default)") || !strings.Contains(s, "8081") {
		t.Fatalf("document row missing: %q", s)
	}
}

func TestStopAllCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/admin/stop_all_project_processes" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(types.StopAllResponse{Stopped: []types.StoppedProcess{{PID: 42, Name: "llama-server"}}})
	}))
	defer srv.Close()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"stop-all", "--env-file", "", "--server", srv.URL + "/"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "stopped 42 llama-server") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestStopAllCommand_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"stop-all", "--env-file", "", "--server", srv.URL})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status error, got %v", err)
	}
}
