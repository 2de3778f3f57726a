// Package cli implements gatectl, the operator CLI for the gate.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goGate/internal/config"
)

type rootOptions struct {
	configPath string
}

// NewRootCmd builds the gatectl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "gatectl",
		Short:         "Operator tooling for the goGate request gate",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./gogate.yaml when present)")

	root.AddCommand(
		cmdRewrites(),
		cmdHashPassword(),
		cmdToken(opts),
		cmdCheckConfig(opts),
	)
	return root
}

// Execute runs gatectl with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads the config file and environment; warnings go to stderr.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Settings, *slog.Logger, error) {
	s, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	return s, stderrLogger(cmd.ErrOrStderr()), nil
}

func stderrLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
