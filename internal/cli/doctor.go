package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Providers: %d, models: %d, advisors: %d\n", len(cfg.Providers), len(cfg.Models), len(cfg.Advisors))
			fmt.Fprintf(out, "Chairman: %s, call timeout: %s\n", cfg.Council.Chairman, cfg.Council.CallTimeout())
			fmt.Fprintf(out, "Storage: %s, metrics: %v\n", cfg.Storage.Path, cfg.Server.MetricsEnabled)
			return nil
		},
	}
}
