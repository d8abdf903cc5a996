package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"llamaswitch/internal/registry"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect settings and backend configuration documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("config requires a subcommand: show")
		},
	}
	show := &cobra.Command{
		Use:     "show",
		Short:   "Print effective settings and the configuration documents found",
		Example: "  llamaswitch config show --config llamaswitch.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings(cmd.Flags(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode settings: %w", err)
			}
			fmt.Fprintf(out, "# settings\n%s\n", b)

			reg, err := registry.LoadDir(cfg.ConfigsDir)
			if err != nil {
				return fmt.Errorf("load configs: %w", err)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFAMILY\tPORT\tFALLBACKS\tMODEL")
			for _, name := range reg.Names() {
				doc, _ := reg.Get(name)
				marker := name
				if name == cfg.DefaultConfig {
					marker += " (default)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", marker, doc.Backend.Family, doc.Backend.Port, len(doc.Variants(doc.Backend)), doc.Backend.ModelPath)
			}
			return tw.Flush()
		},
	}
	show.Flags().String("configs-dir", "", "Directory of backend configuration documents (defaults ./configs)")
	show.Flags().String("default-config", "", "Configuration marked as default")
	cmd.AddCommand(show)
	return cmd
}
