package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"llamaswitch/internal/gpu"
)

func newGPUCmd(opts *rootOptions) *cobra.Command {
	var (
		bin  string
		wait time.Duration
	)
	cmd := &cobra.Command{
		Use:     "gpu",
		Short:   "List GPU compute processes, optionally waiting for the GPU to go idle",
		Example: "  llamaswitch gpu\n  llamaswitch gpu --wait 30s",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			gate := gpu.NewGate(gpu.NvidiaSMI{Bin: bin}, log)
			if wait > 0 && !gate.WaitFree(cmd.Context(), wait, time.Second) {
				printApps(cmd, gate.Busy(cmd.Context()))
				return fmt.Errorf("gpu still busy after %s", wait)
			}
			printApps(cmd, gate.Busy(cmd.Context()))
			return nil
		},
	}
	cmd.Flags().StringVar(&bin, "nvidia-smi", "", "Path to nvidia-smi (defaults to PATH lookup)")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the GPU to become free")
	return cmd
}

func printApps(cmd *cobra.Command, apps []gpu.ComputeApp) {
	out := cmd.OutOrStdout()
	if len(apps) == 0 {
		fmt.Fprintln(out, "gpu free")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tPROCESS\tMEMORY")
	for _, a := range apps {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", a.PID, a.ProcessName, humanize.IBytes(uint64(a.UsedMemoryMiB)*1024*1024))
	}
	_ = tw.Flush()
}
