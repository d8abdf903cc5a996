package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"llamaswitch/internal/common/fsutil"
)

// EnvPrefix is the prefix for environment overrides, e.g. LLAMASWITCH_ADDR.
const EnvPrefix = "LLAMASWITCH"

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr          string            `json:"addr" yaml:"addr" toml:"addr" envconfig:"ADDR"`
	ConfigsDir    string            `json:"configs_dir" yaml:"configs_dir" toml:"configs_dir" envconfig:"CONFIGS_DIR"`
	DefaultConfig string            `json:"default_config" yaml:"default_config" toml:"default_config" envconfig:"DEFAULT_CONFIG"`
	ModelMap      map[string]string `json:"model_map" yaml:"model_map" toml:"model_map" envconfig:"MODEL_MAP"`
	LogDir        string            `json:"log_dir" yaml:"log_dir" toml:"log_dir" envconfig:"LOG_DIR"`
	LogLevel      string            `json:"log_level" yaml:"log_level" toml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat     string            `json:"log_format" yaml:"log_format" toml:"log_format" envconfig:"LOG_FORMAT"`
	WorkspaceDir  string            `json:"workspace_dir" yaml:"workspace_dir" toml:"workspace_dir" envconfig:"WORKSPACE_DIR"`
	MaxBodyBytes  int64             `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled" envconfig:"CORS_ENABLED"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins" envconfig:"CORS_ORIGINS"`

	// Timings, in seconds unless noted.
	GPUWaitSec         int `json:"gpu_wait_sec" yaml:"gpu_wait_sec" toml:"gpu_wait_sec" envconfig:"GPU_WAIT_SEC"`
	StopGraceSec       int `json:"stop_grace_sec" yaml:"stop_grace_sec" toml:"stop_grace_sec" envconfig:"STOP_GRACE_SEC"`
	ReadyAttempts      int `json:"ready_attempts" yaml:"ready_attempts" toml:"ready_attempts" envconfig:"READY_ATTEMPTS"`
	MonitorIntervalSec int `json:"monitor_interval_sec" yaml:"monitor_interval_sec" toml:"monitor_interval_sec" envconfig:"MONITOR_INTERVAL_SEC"`
	MaxBackoffSec      int `json:"max_backoff_sec" yaml:"max_backoff_sec" toml:"max_backoff_sec" envconfig:"MAX_BACKOFF_SEC"`

	// CompletionTimeoutSec bounds proxying a completion; 0 disables it.
	CompletionTimeoutSec int `json:"completion_timeout_sec" yaml:"completion_timeout_sec" toml:"completion_timeout_sec" envconfig:"COMPLETION_TIMEOUT_SEC"`
}

// DefaultModelMap maps request model names to configuration document names.
func DefaultModelMap() map[string]string {
	return map[string]string{
		"mistral":       "mistral",
		"qwen":          "qwen",
		"qwen2.5":       "qwen",
		"qwen2.5-coder": "qwen",
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8080"
	}
	if c.ConfigsDir == "" {
		c.ConfigsDir = "./configs"
	}
	if c.DefaultConfig == "" {
		c.DefaultConfig = "qwen"
	}
	if len(c.ModelMap) == 0 {
		c.ModelMap = DefaultModelMap()
	}
	if c.LogDir == "" {
		c.LogDir = "./logs"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays LLAMASWITCH_* environment variables onto cfg.
// Only variables that are present change the corresponding field.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	return nil
}

// LoadDocument reads a named backend configuration document. The document
// name is the file stem (qwen.json -> "qwen").
func LoadDocument(path string) (BackendDocument, error) {
	var doc BackendDocument
	if path == "" {
		return doc, fmt.Errorf("empty document path")
	}
	if err := decodeFile(path, &doc); err != nil {
		return doc, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	doc.Path = path
	for _, p := range []*string{&doc.Backend.ModelPath, &doc.Backend.LlamaCppPath} {
		expanded, err := fsutil.ExpandHome(*p)
		if err != nil {
			return doc, fmt.Errorf("%s: %w", doc.Name, err)
		}
		*p = expanded
	}
	doc.Backend = doc.Backend.withDefaults()
	return doc, nil
}

// NewDocument builds an in-memory document with the same defaults LoadDocument applies.
func NewDocument(name string, backend BackendConfig, fallbacks ...Variant) BackendDocument {
	return BackendDocument{Name: name, Backend: backend.withDefaults(), Fallbacks: fallbacks}
}

// IsSupportedExt reports whether ext (with dot) is a loadable config format.
func IsSupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml", ".json", ".toml":
		return true
	}
	return false
}

func decodeFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, v)
	case ".json":
		return json.Unmarshal(b, v)
	case ".toml":
		return toml.Unmarshal(b, v)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
}
