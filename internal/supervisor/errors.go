package supervisor

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"llamaswitch/internal/config"
)

// ErrClosed is returned by launches requested after Shutdown.
var ErrClosed = errors.New("supervisor shut down")

// ResourceBusyError means the GPU stayed busy for the whole wait budget.
type ResourceBusyError struct {
	Wait time.Duration
}

func (e *ResourceBusyError) Error() string {
	return fmt.Sprintf("gpu still in use after waiting %s; refusing to start llama-server", e.Wait)
}

func (e *ResourceBusyError) StatusCode() int { return http.StatusServiceUnavailable }

// ReadinessError means a spawned backend never answered /health, or exited
// before it did.
type ReadinessError struct {
	URL      string
	Variant  string
	Attempts int
	Exited   bool
	ExitCode int
}

func (e *ReadinessError) Error() string {
	who := "llama-server"
	if e.Variant != "" {
		who += " (variant " + e.Variant + ")"
	}
	if e.Exited {
		return fmt.Sprintf("%s exited with code %d before becoming ready at %s", who, e.ExitCode, e.URL)
	}
	return fmt.Sprintf("%s not ready after %d health checks at %s", who, e.Attempts, e.URL)
}

func (e *ReadinessError) StatusCode() int { return http.StatusServiceUnavailable }

// ProcessCrashError describes a ready backend that exited on its own.
type ProcessCrashError struct {
	PID      int
	ExitCode int
}

func (e *ProcessCrashError) Error() string {
	return fmt.Sprintf("llama-server pid %d exited unexpectedly with code %d", e.PID, e.ExitCode)
}

// UpstreamError wraps a transport failure talking to the backend.
type UpstreamError struct {
	URL string
	Err error
}

func (e *UpstreamError) Error() string { return "upstream " + e.URL + ": " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }
func (e *UpstreamError) StatusCode() int {
	return http.StatusBadGateway
}

// StartFailedError is returned to a completion caller whose model could not
// be brought up. Diagnostic carries the captured stderr tail.
type StartFailedError struct {
	Model      string
	Config     string
	Diagnostic string
	Err        error
}

func (e *StartFailedError) Error() string {
	return fmt.Sprintf("model_start_failed: %s (config %s): %v", e.Model, e.Config, e.Err)
}

func (e *StartFailedError) Unwrap() error   { return e.Err }
func (e *StartFailedError) StatusCode() int { return http.StatusServiceUnavailable }

// Hint points the caller at the persisted diagnostic.
func (e *StartFailedError) Hint() string {
	return "see /last_start_error and logs/last_start_error.log"
}

// UnavailableError means no live backend serves the requested model and the
// router will not restart it inline; the monitor owns crash recovery.
type UnavailableError struct {
	Model string
}

func (e *UnavailableError) Error() string   { return "server_unavailable: " + e.Model }
func (e *UnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// UnknownConfigError reports a configuration name missing from the registry.
type UnknownConfigError struct {
	Name string
}

func (e *UnknownConfigError) Error() string   { return fmt.Sprintf("unknown configuration %q", e.Name) }
func (e *UnknownConfigError) StatusCode() int { return http.StatusNotFound }

// IsResourceBusy reports whether err stems from the GPU gate.
func IsResourceBusy(err error) bool {
	var e *ResourceBusyError
	return errors.As(err, &e)
}

// IsReadiness reports whether err is a readiness failure.
func IsReadiness(err error) bool {
	var e *ReadinessError
	return errors.As(err, &e)
}

// IsUpstream reports whether err is a backend transport failure.
func IsUpstream(err error) bool {
	var e *UpstreamError
	return errors.As(err, &e)
}

// IsStartFailed reports whether a completion failed because its backend could not start.
func IsStartFailed(err error) bool {
	var e *StartFailedError
	return errors.As(err, &e)
}

// IsUnavailable reports whether no live backend was present.
func IsUnavailable(err error) bool {
	var e *UnavailableError
	return errors.As(err, &e)
}

// IsUnknownConfig reports whether err names a missing configuration.
func IsUnknownConfig(err error) bool {
	var e *UnknownConfigError
	return errors.As(err, &e)
}

// IsConfigError reports whether err is a configuration rejection. These are
// never retried with fallbacks.
func IsConfigError(err error) bool {
	var e *config.ConfigError
	return errors.As(err, &e)
}
