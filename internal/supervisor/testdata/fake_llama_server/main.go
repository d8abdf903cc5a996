package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	fs := flag.NewFlagSet("llama-server", flag.ContinueOnError)
	model := fs.String("model", "", "model path")
	host := fs.String("host", "127.0.0.1", "host")
	port := fs.Int("port", 0, "port")
	// accepted and ignored
	for _, name := range []string{"chat-template", "ctx-size", "batch-size", "ubatch-size", "parallel", "threads",
		"n-gpu-layers", "cache-type-k", "cache-type-v", "temp", "top-k", "top-p", "repeat-penalty", "mirostat", "flash-attn"} {
		fs.String(name, "", "")
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	if os.Getenv("FAKE_LLAMA_MODE") == "crash" {
		fmt.Fprintln(os.Stderr, "ggml_cuda_init: found 1 CUDA devices")
		fmt.Fprintln(os.Stderr, "CUDA error: out of memory")
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"content": "ok from " + *model, "prompt": req["prompt"]})
	})

	srv := &http.Server{Addr: fmt.Sprintf("%s:%d", *host, *port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
