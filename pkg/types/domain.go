package types

// ConfigSummary describes a named backend configuration document.
type ConfigSummary struct {
	// Configuration name (document file stem).
	// example: qwen
	Name string `json:"name" example:"qwen"`
	// Model file served by this configuration.
	// example: C:/models/qwen2.5-coder-7b-instruct-q4_k_m.gguf
	ModelPath string `json:"model_path" example:"C:/models/qwen2.5-coder-7b-instruct-q4_k_m.gguf"`
	// Backend listen port.
	// example: 8081
	Port int `json:"port" example:"8081"`
	// Model family used for convenience defaults.
	// example: qwen
	Family string `json:"family" example:"qwen"`
	// Whether this configuration is the one currently running.
	Active bool `json:"active"`
}

// StoppedProcess is one process killed by the admin stop-all endpoint.
type StoppedProcess struct {
	// example: 12345
	PID int `json:"pid" example:"12345"`
	// example: llama-server
	Name string `json:"name" example:"llama-server"`
}
