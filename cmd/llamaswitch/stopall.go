package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"llamaswitch/pkg/types"
)

func newStopAllCmd(opts *rootOptions) *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:     "stop-all",
		Short:   "Ask a running server to stop its backend and every stray project process",
		Example: "  llamaswitch stop-all --server http://127.0.0.1:8080",
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				cfg, err := loadSettings(cmd.Flags(), opts)
				if err != nil {
					return err
				}
				server = "http://" + cfg.Addr
			}
			url := strings.TrimRight(server, "/") + "/admin/stop_all_project_processes"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, nil)
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: 60 * time.Second}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("stop-all: %w", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("stop-all: %s", resp.Status)
			}
			var out types.StopAllResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			if len(out.Stopped) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to stop")
				return nil
			}
			for _, p := range out.Stopped {
				fmt.Fprintf(cmd.OutOrStdout(), "stopped %d %s\n", p.PID, p.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "Server base URL (defaults to http://<addr> from settings)")
	cmd.Flags().String("addr", "", "Server listen address used when --server is empty")
	return cmd
}
