package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"llamaswitch/internal/config"
	"llamaswitch/internal/gpu"
	"llamaswitch/internal/httpapi"
	"llamaswitch/internal/registry"
	"llamaswitch/internal/supervisor"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var noAutostart bool
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Start the HTTP API, the default backend and the crash monitor",
		Example: "  llamaswitch serve --configs-dir ./configs --default-config qwen",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, log, !noAutostart)
		},
	}
	f := cmd.Flags()
	f.String("addr", "", "HTTP listen address (defaults LLAMASWITCH_ADDR or 127.0.0.1:8080)")
	f.String("configs-dir", "", "Directory of backend configuration documents (defaults ./configs)")
	f.String("default-config", "", "Configuration started at boot and used for unknown models (defaults qwen)")
	f.String("log-dir", "", "Directory for llama-server logs and last_start_error.log (defaults ./logs)")
	f.String("workspace-dir", "", "Workspace path matched by stop-all (empty disables the path match)")
	f.String("cors-origins", "", "Comma-separated CORS origins; enables CORS when set")
	f.Int64("max-body-bytes", 0, "Maximum JSON request body size (defaults 1MiB)")
	f.Int("gpu-wait-sec", 0, "Seconds to wait for a busy GPU before refusing to start")
	f.Int("ready-attempts", 0, "Health checks (one per second) before a launch is declared failed")
	f.Int("completion-timeout-sec", 0, "Seconds allowed for proxying one completion, model switch excluded (0 disables)")
	f.BoolVar(&noAutostart, "no-autostart", false, "Do not start the default configuration at boot")
	return cmd
}

// supervisorConfig maps settings onto the supervisor. Zero timings keep the
// supervisor defaults.
func supervisorConfig(cfg config.Config, reg *registry.Registry, log zerolog.Logger) supervisor.Config {
	sc := supervisor.Config{
		Source:        reg,
		DefaultConfig: cfg.DefaultConfig,
		ModelMap:      cfg.ModelMap,
		LogDir:        cfg.LogDir,
		WorkspaceDir:  cfg.WorkspaceDir,
		Logger:        log,
		Gate:          gpu.NewGate(nil, log),
		ReadyAttempts: cfg.ReadyAttempts,
	}
	if cfg.GPUWaitSec > 0 {
		sc.GPUWait = time.Duration(cfg.GPUWaitSec) * time.Second
	}
	if cfg.StopGraceSec > 0 {
		sc.StopGrace = time.Duration(cfg.StopGraceSec) * time.Second
	}
	if cfg.MonitorIntervalSec > 0 {
		sc.MonitorInterval = time.Duration(cfg.MonitorIntervalSec) * time.Second
	}
	if cfg.MaxBackoffSec > 0 {
		sc.MaxBackoff = time.Duration(cfg.MaxBackoffSec) * time.Second
	}
	return sc
}

func runServe(ctx context.Context, cfg config.Config, log zerolog.Logger, autostart bool) error {
	reg, err := registry.LoadDir(cfg.ConfigsDir)
	if err != nil {
		return fmt.Errorf("load configs: %w", err)
	}
	if _, ok := reg.Get(cfg.DefaultConfig); !ok {
		log.Warn().Str("default_config", cfg.DefaultConfig).Strs("available", reg.Names()).Msg("default configuration not found")
	}
	sup := supervisor.New(supervisorConfig(cfg, reg, log))

	httpapi.SetLogger(log)
	httpapi.SetRequestLogLevel(cfg.LogLevel)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCompletionTimeoutSeconds(int64(cfg.CompletionTimeoutSec))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, nil, nil)
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(sup),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("configs_dir", cfg.ConfigsDir).Strs("configs", reg.Names()).Msg("llamaswitch listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if autostart {
			if _, err := sup.Start(gctx, cfg.DefaultConfig, ""); err != nil {
				// keep serving; /last_start_error explains the failure
				log.Error().Err(err).Str("config", cfg.DefaultConfig).Msg("initial start failed")
			}
		}
		return sup.Monitor(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		cancelBase()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		sup.Shutdown()
		return nil
	})
	return g.Wait()
}
