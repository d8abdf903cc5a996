package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"llamaswitch/pkg/types"
)

// Completion is the backend's response, relayed verbatim.
type Completion struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Complete routes a completion to the backend serving req.Model, switching
// the backend first when a different model is active.
func (s *Supervisor) Complete(ctx context.Context, req types.CompletionRequest) (*Completion, error) {
	ref := s.ResolveConfig(req.Model)
	doc, ok := s.cfg.Source.Get(ref)
	if !ok {
		return nil, &StartFailedError{Model: req.Model, Config: ref, Err: &UnknownConfigError{Name: ref}}
	}
	target := doc.Backend.ModelPath
	if s.activeModel() != target {
		if res, err := s.switchTo(ctx, ref, "", target); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil, &UnavailableError{Model: req.Model}
			}
			diag := res.Diagnostic
			if diag == "" {
				diag = s.LastStartError().Error
			}
			return nil, &StartFailedError{Model: req.Model, Config: ref, Diagnostic: diag, Err: err}
		}
	}
	cfg, ok := s.liveConfig()
	if !ok {
		return nil, &UnavailableError{Model: req.Model}
	}
	return s.forward(ctx, cfg.BaseURL(), backendRequest(req, cfg.NPredict, cfg.Temp))
}

// switchTo launches ref unless target became active while waiting for opMu.
// The launch ignores caller cancellation so a disconnect cannot leave a
// half-started backend.
func (s *Supervisor) switchTo(ctx context.Context, ref, override, target string) (LaunchResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if s.isClosed() {
		return LaunchResult{Config: ref}, ErrClosed
	}
	if s.activeModel() == target {
		return LaunchResult{}, nil
	}
	from := s.activeModel()
	s.log.Info().Str("from", from).Str("to", target).Str("config", ref).Msg("switching model")
	switchesTotal.Inc()
	s.publish(EventSwitch, target, map[string]any{"from": from, "config": ref})
	return s.startLocked(context.WithoutCancel(ctx), ref, override)
}

// SwitchModel starts configName (default when empty) serving modelPath.
func (s *Supervisor) SwitchModel(ctx context.Context, modelPath, configName string) error {
	ref := configName
	if ref == "" {
		ref = s.cfg.DefaultConfig
	}
	doc, ok := s.cfg.Source.Get(ref)
	if !ok {
		return &UnknownConfigError{Name: ref}
	}
	target := doc.Backend.WithModel(modelPath).ModelPath
	if _, err := s.switchTo(ctx, ref, modelPath, target); err != nil {
		if errors.Is(err, ErrClosed) {
			return &UnavailableError{Model: target}
		}
		return err
	}
	return nil
}

func backendRequest(req types.CompletionRequest, nPredict int, temp float64) types.BackendCompletionRequest {
	out := types.BackendCompletionRequest{
		Prompt:      req.Prompt,
		NPredict:    nPredict,
		Temperature: temp,
		Stop:        req.Stop,
	}
	if req.NPredict != nil {
		out.NPredict = *req.NPredict
	}
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}
	if out.Stop == nil {
		out.Stop = []string{}
	}
	return out
}

// forward posts body to the backend's /completion without holding any lock.
func (s *Supervisor) forward(ctx context.Context, baseURL string, body types.BackendCompletionRequest) (*Completion, error) {
	s.inflight.Add(1)
	inflightCompletions.Inc()
	defer func() {
		s.inflight.Add(-1)
		inflightCompletions.Dec()
	}()

	url := baseURL + "/completion"
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode completion: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.cfg.Client.Do(req)
	if err != nil {
		upstreamErrors.Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UpstreamError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		upstreamErrors.Inc()
		return nil, &UpstreamError{URL: url, Err: err}
	}
	return &Completion{StatusCode: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: b}, nil
}
