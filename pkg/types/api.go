package types

// CompletionRequest is the payload for POST /v1/completions.
type CompletionRequest struct {
	// Required prompt text.
	// example: def fibonacci(n):
	Prompt string `json:"prompt" example:"def fibonacci(n):"`
	// Maximum number of tokens to predict. Omitted uses the configuration default.
	// example: 200
	NPredict *int `json:"n_predict,omitempty" example:"200"`
	// Sampling temperature. Omitted uses the configuration default.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Optional stop sequences.
	// example: ["\n\n"]
	Stop []string `json:"stop,omitempty"`
	// Model name (qwen, qwen2.5, qwen2.5-coder, mistral). Unknown names use the default configuration.
	// example: mistral
	Model string `json:"model,omitempty" example:"mistral"`
}

// BackendCompletionRequest is forwarded to the backend's POST /completion.
type BackendCompletionRequest struct {
	Prompt      string   `json:"prompt"`
	NPredict    int      `json:"n_predict"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop"`
}

// SwitchModelRequest is the payload for POST /switch_model.
type SwitchModelRequest struct {
	// Model file to serve.
	// example: /models/qwen2.5-coder-14b-q4_k_m.gguf
	ModelPath string `json:"model_path" example:"/models/qwen2.5-coder-14b-q4_k_m.gguf"`
	// Optional configuration name; defaults to the server's default configuration.
	// example: qwen
	Config string `json:"config,omitempty" example:"qwen"`
}

// SwitchModelResponse is returned by POST /switch_model on success.
type SwitchModelResponse struct {
	// example: ok
	Status string `json:"status" example:"ok"`
	// example: /models/qwen2.5-coder-14b-q4_k_m.gguf
	ModelPath string `json:"model_path" example:"/models/qwen2.5-coder-14b-q4_k_m.gguf"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// ok when a backend process is alive, error otherwise.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Model currently served (may be empty).
	ModelPath string `json:"model_path"`
}

// LastStartErrorResponse is returned by GET /last_start_error.
type LastStartErrorResponse struct {
	// Most recent start failure diagnostic, empty when healthy.
	Error string `json:"error"`
	// File holding the same diagnostic.
	// example: logs/last_start_error.log
	LogPath string `json:"log_path" example:"logs/last_start_error.log"`
}

// StopAllResponse is returned by POST /admin/stop_all_project_processes.
type StopAllResponse struct {
	Stopped []StoppedProcess `json:"stopped"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message or code.
	// example: model_start_failed
	Error string `json:"error" example:"model_start_failed"`
	// HTTP status code.
	// example: 503
	Code int `json:"code" example:"503"`
	// Requested model, when the error concerns one.
	Model string `json:"model,omitempty"`
	// Where to look next.
	Hint string `json:"hint,omitempty"`
	// Captured diagnostic (e.g. backend stderr tail).
	Detail string `json:"detail,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Supervisor phase (stopped, starting, fallback_starting, ready, running, crashed, backoff, stopping).
	// example: ready
	Phase string `json:"phase" example:"ready"`
	// Configuration last started successfully.
	// example: qwen
	ActiveConfig string `json:"active_config" example:"qwen"`
	// Model currently served.
	ModelPath string `json:"model_path"`
	// Backend process ID, 0 when none.
	// example: 12345
	PID int `json:"pid,omitempty" example:"12345"`
	// Backend port, 0 when none.
	// example: 8081
	Port int `json:"port,omitempty" example:"8081"`
	// Fallback variant the backend runs with, empty for the primary configuration.
	Variant string `json:"variant,omitempty"`
	// Consecutive restart failures driving backoff.
	// example: 0
	RestartFailCount int `json:"restart_fail_count" example:"0"`
	// Completions currently being proxied.
	// example: 1
	Inflight int64 `json:"inflight" example:"1"`
	// Most recent start failure diagnostic.
	LastStartError string `json:"last_start_error,omitempty"`
	// Uptime of the supervisor in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
