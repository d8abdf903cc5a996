package registry

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"llamaswitch/internal/config"
)

const qwenDoc = `{"llama_cpp":{"modelPath":"/m/qwen.gguf","port":8081,"gpuLayers":99}}`

func TestLoadDir_FiltersAndNames(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"qwen.json":    qwenDoc,
		"mistral.yaml": "llama_cpp:\n  modelPath: /m/mistral.gguf\n  port: 8082\n  gpuLayers: 33\n",
		"notes.txt":    "ignored",
		"model.gguf":   "",
	}
	for f, body := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(body), 0o644); err != nil {
			t.Fatalf("write temp file: %v", err)
		}
	}
	r, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if got := strings.Join(r.Names(), ","); got != "mistral,qwen" {
		t.Fatalf("names=%s", got)
	}
	d, ok := r.Get("mistral")
	if !ok || d.Backend.Port != 8082 || d.Backend.Family != config.FamilyMistral {
		t.Fatalf("unexpected doc: %+v", d)
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatalf("expected missing doc")
	}
}

func TestLoadDir_DuplicateStem(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "qwen.json"), []byte(qwenDoc), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "qwen.toml"), []byte("[llama_cpp]\nmodelPath=\"/m/q.gguf\"\nport=1\ngpuLayers=1\n"), 0o644)
	if _, err := LoadDir(dir); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestLoadDir_ExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir on this platform: %v", err)
	}
	hTmp, err := os.MkdirTemp(home, "llamaswitch-registry-*")
	if err != nil {
		t.Skipf("cannot create temp under home: %v", err)
	}
	defer os.RemoveAll(hTmp)
	if err := os.WriteFile(filepath.Join(hTmp, "qwen.json"), []byte(qwenDoc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	var tildePath string
	if runtime.GOOS == "windows" {
		tildePath = filepath.Join("~", filepath.Base(hTmp))
	} else {
		tildePath = "~/" + filepath.Base(hTmp)
	}
	r, err := LoadDir(tildePath)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if len(r.Names()) != 1 {
		t.Fatalf("unexpected names: %v", r.Names())
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := 1024
	r := New(config.BackendDocument{Name: "q", Fallbacks: []config.Variant{{Name: "a", CtxSize: &ctx}}})
	d, _ := r.Get("q")
	d.Fallbacks[0].Name = "mutated"
	d2, _ := r.Get("q")
	if d2.Fallbacks[0].Name != "a" {
		t.Fatalf("registry mutated via returned document")
	}
}
