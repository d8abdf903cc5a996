package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llamaswitch/internal/supervisor"
	"llamaswitch/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Complete(ctx context.Context, req types.CompletionRequest) (*supervisor.Completion, error)
	SwitchModel(ctx context.Context, modelPath, configName string) error
	StopAll(ctx context.Context) types.StopAllResponse
	Health() types.HealthResponse
	LastStartError() types.LastStartErrorResponse
	Status() types.StatusResponse
	ListConfigs() []types.ConfigSummary
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	if corsEnabled {
		methods := corsAllowedMethods
		if len(methods) == 0 {
			methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		}
		headers := corsAllowedHeaders
		if len(headers) == 0 {
			headers = []string{"Content-Type", "X-Log-Level", "X-Request-Id"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: methods,
			AllowedHeaders: headers,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Post("/v1/completions", h.completions)
	r.Post("/switch_model", h.switchModel)
	r.Post("/admin/stop_all_project_processes", h.stopAll)
	r.Get("/health", h.health)
	r.Get("/last_start_error", h.lastStartError)
	r.Get("/status", h.status)
	r.Get("/configs", h.configs)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no backend"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("encode response")
	}
}

// decodeJSON enforces the content type and body limit shared by POST endpoints.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// size overflows also land here; do not leak the limit
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// completions godoc
// @Summary      Text completion
// @Description  Routes the prompt to the backend serving the requested model, switching models first when needed. The backend's response is relayed verbatim.
// @Tags         completions
// @Accept       json
// @Produce      json
// @Param        request  body      types.CompletionRequest  true  "Completion request"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  types.ErrorResponse
// @Failure      502      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /v1/completions [post]
func (h *handlers) completions(w http.ResponseWriter, r *http.Request) {
	var req types.CompletionRequest
	if !decodeJSON(w, r, &req) {
		IncrementCompletionFailure("bad_request")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		IncrementCompletionFailure("bad_request")
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	start := time.Now()
	if ev := reqEvent(r, LevelInfo); ev != nil {
		ev.Str("model", req.Model).Msg("completion start")
	}
	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if completionTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, time.Duration(completionTimeout)*time.Second)
		defer tcancel()
	}
	out, err := h.svc.Complete(ctx, req)
	if err != nil {
		// client went away or server is shutting down
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := writeServiceError(w, err, req.Model)
		IncrementCompletionFailure(failureReason(err))
		if ev := reqEvent(r, LevelError); ev != nil {
			ev.Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("completion failed")
		}
		return
	}
	ct := out.ContentType
	if ct == "" {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(out.StatusCode)
	_, _ = w.Write(out.Body)
	if ev := reqEvent(r, LevelInfo); ev != nil {
		ev.Int("status", out.StatusCode).Dur("dur", time.Since(start)).Int("bytes", len(out.Body)).Msg("completion end")
	}
	if ev := reqEvent(r, LevelDebug); ev != nil {
		ev.Bytes("body", out.Body).Msg("completion body")
	}
}

func failureReason(err error) string {
	switch {
	case supervisor.IsStartFailed(err):
		return "start_failed"
	case supervisor.IsUnavailable(err):
		return "unavailable"
	case supervisor.IsUpstream(err):
		return "upstream"
	default:
		return "internal"
	}
}

// switchModel godoc
// @Summary      Switch model
// @Description  Starts the default (or named) configuration serving model_path. Blocks until the backend is ready or every fallback failed.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        request  body      types.SwitchModelRequest  true  "Switch request"
// @Success      200      {object}  types.SwitchModelResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      404      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /switch_model [post]
func (h *handlers) switchModel(w http.ResponseWriter, r *http.Request) {
	var req types.SwitchModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		writeJSONError(w, http.StatusBadRequest, "model_path is required")
		return
	}
	if err := h.svc.SwitchModel(r.Context(), req.ModelPath, req.Config); err != nil {
		status := writeServiceError(w, err, "")
		if ev := reqEvent(r, LevelError); ev != nil {
			ev.Int("status", status).Str("model_path", req.ModelPath).Err(err).Msg("switch failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, types.SwitchModelResponse{Status: "ok", ModelPath: req.ModelPath})
}

// stopAll godoc
// @Summary      Stop all project processes
// @Description  Stops the managed backend, disables automatic restarts until the next completion, and kills stray llama-server or workspace processes.
// @Tags         admin
// @Produce      json
// @Success      200  {object}  types.StopAllResponse
// @Router       /admin/stop_all_project_processes [post]
func (h *handlers) stopAll(w http.ResponseWriter, r *http.Request) {
	out := h.svc.StopAll(r.Context())
	if ev := reqEvent(r, LevelInfo); ev != nil {
		ev.Int("stopped", len(out.Stopped)).Msg("stop-all")
	}
	writeJSON(w, http.StatusOK, out)
}

// health godoc
// @Summary      Backend health
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.HealthResponse
// @Router       /health [get]
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Health())
}

// lastStartError godoc
// @Summary      Last start error
// @Description  The most recent launch or crash diagnostic, empty after a successful start.
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.LastStartErrorResponse
// @Router       /last_start_error [get]
func (h *handlers) lastStartError(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.LastStartError())
}

// status godoc
// @Summary      Supervisor status
// @Tags         status
// @Produce      json
// @Success      200  {object}  types.StatusResponse
// @Router       /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// configs godoc
// @Summary      List configurations
// @Tags         status
// @Produce      json
// @Success      200  {object}  map[string][]types.ConfigSummary
// @Router       /configs [get]
func (h *handlers) configs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"configs": h.svc.ListConfigs()})
}
