package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// BackendConfig describes one llama-server launch. It is a value type:
// WithModel and Apply return modified copies.
type BackendConfig struct {
	LlamaCppPath string  `json:"llamaCppPath" yaml:"llamaCppPath" toml:"llamaCppPath"`
	ModelPath    string  `json:"modelPath" yaml:"modelPath" toml:"modelPath"`
	Host         string  `json:"host,omitempty" yaml:"host,omitempty" toml:"host,omitempty"`
	Port         int     `json:"port" yaml:"port" toml:"port"`
	CtxSize      int     `json:"ctxSize" yaml:"ctxSize" toml:"ctxSize"`
	BatchSize    int     `json:"batchSize" yaml:"batchSize" toml:"batchSize"`
	UBatchSize   int     `json:"ubatchSize" yaml:"ubatchSize" toml:"ubatchSize"`
	Parallel     int     `json:"parallel" yaml:"parallel" toml:"parallel"`
	Threads      int     `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers    int     `json:"gpuLayers" yaml:"gpuLayers" toml:"gpuLayers"`
	CacheK       string  `json:"cacheK" yaml:"cacheK" toml:"cacheK"`
	CacheV       string  `json:"cacheV" yaml:"cacheV" toml:"cacheV"`
	Temp         float64 `json:"temp" yaml:"temp" toml:"temp"`
	TopK         int     `json:"topK" yaml:"topK" toml:"topK"`
	TopP         float64 `json:"topP" yaml:"topP" toml:"topP"`
	RepeatPen    float64 `json:"repeatPen" yaml:"repeatPen" toml:"repeatPen"`
	Mirostat     int     `json:"mirostat" yaml:"mirostat" toml:"mirostat"`
	FlashAttn    string  `json:"flashAttn" yaml:"flashAttn" toml:"flashAttn"`
	ChatTemplate string  `json:"chatTemplate,omitempty" yaml:"chatTemplate,omitempty" toml:"chatTemplate,omitempty"`
	NPredict     int     `json:"nPredict,omitempty" yaml:"nPredict,omitempty" toml:"nPredict,omitempty"`

	// Family is derived from ModelPath; never read from documents.
	Family Family `json:"-" yaml:"-" toml:"-"`
}

// BackendDocument is one named configuration source.
type BackendDocument struct {
	Name      string        `json:"-" yaml:"-" toml:"-"`
	Path      string        `json:"-" yaml:"-" toml:"-"`
	Backend   BackendConfig `json:"llama_cpp" yaml:"llama_cpp" toml:"llama_cpp"`
	Fallbacks []Variant     `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty" toml:"fallbacks,omitempty"`
}

// Variants returns the fallback chain for cfg: the document's explicit list
// when present, otherwise DefaultVariants(cfg).
func (d BackendDocument) Variants(cfg BackendConfig) []Variant {
	if len(d.Fallbacks) > 0 {
		return append([]Variant(nil), d.Fallbacks...)
	}
	return DefaultVariants(cfg)
}

const (
	DefaultHost         = "127.0.0.1"
	DefaultChatTemplate = "chatml"
	DefaultNPredict     = 200
	DefaultTemp         = 0.7
	DefaultLlamaServer  = "llama-server"
)

func (c BackendConfig) withDefaults() BackendConfig {
	if c.LlamaCppPath == "" {
		c.LlamaCppPath = DefaultLlamaServer
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.ChatTemplate == "" {
		c.ChatTemplate = DefaultChatTemplate
	}
	if c.NPredict <= 0 {
		c.NPredict = DefaultNPredict
	}
	c.Family = FamilyOf(c.ModelPath)
	return c
}

// WithModel returns a copy serving modelPath; the family is re-derived.
func (c BackendConfig) WithModel(modelPath string) BackendConfig {
	if strings.TrimSpace(modelPath) == "" {
		return c
	}
	c.ModelPath = modelPath
	c.Family = FamilyOf(modelPath)
	return c
}

// BaseURL is the backend's HTTP root, e.g. http://127.0.0.1:8081.
func (c BackendConfig) BaseURL() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

// WorkDir is the directory the backend is started in.
func (c BackendConfig) WorkDir() string {
	if !strings.ContainsAny(c.LlamaCppPath, `/\`) {
		return ""
	}
	return filepath.Dir(c.LlamaCppPath)
}

// ConfigError reports an invalid backend configuration. It is never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// Validate checks launch invariants. GPU offload is mandatory.
func (c BackendConfig) Validate() error {
	if c.GPULayers <= 0 {
		return &ConfigError{Field: "gpuLayers", Reason: "must be > 0 for GPU mode"}
	}
	if strings.TrimSpace(c.ModelPath) == "" {
		return &ConfigError{Field: "modelPath", Reason: "is empty"}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigError{Field: "port", Reason: fmt.Sprintf("out of range: %d", c.Port)}
	}
	return nil
}

// Args builds the llama-server argv (without the executable).
func (c BackendConfig) Args() []string {
	ff := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	return []string{
		"--model", c.ModelPath,
		"--chat-template", c.ChatTemplate,
		"--host", c.Host,
		"--port", strconv.Itoa(c.Port),
		"--ctx-size", strconv.Itoa(c.CtxSize),
		"--batch-size", strconv.Itoa(c.BatchSize),
		"--ubatch-size", strconv.Itoa(c.UBatchSize),
		"--parallel", strconv.Itoa(c.Parallel),
		"--threads", strconv.Itoa(c.Threads),
		"--n-gpu-layers", strconv.Itoa(c.GPULayers),
		"--cache-type-k", c.CacheK,
		"--cache-type-v", c.CacheV,
		"--temp", ff(c.Temp),
		"--top-k", strconv.Itoa(c.TopK),
		"--top-p", ff(c.TopP),
		"--repeat-penalty", ff(c.RepeatPen),
		"--mirostat", strconv.Itoa(c.Mirostat),
		"--flash-attn", c.FlashAttn,
	}
}
