package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Validates the effective configuration and prints lint findings.
func cmdCheckConfig(opts *rootOptions) *cobra.Command {
	var strict bool

	c := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and report risky settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cfg, err := s.GateConfig(logger)
			if err != nil {
				return err
			}

			warnings := cfg.Lint()
			out := cmd.OutOrStdout()
			for _, w := range warnings {
				fmt.Fprintf(out, "warning %s: %s\n", w.Code, w.Message)
			}
			if strict && len(warnings) > 0 {
				return fmt.Errorf("%d lint warning(s)", len(warnings))
			}
			fmt.Fprintf(out, "ok: env=%s signing=%s\n", cfg.Environment, cfg.JWT.SigningMethod)
			return nil
		},
	}
	c.Flags().BoolVar(&strict, "strict", false, "fail when lint reports warnings")
	return c
}
