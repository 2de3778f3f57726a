package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/jwt"
)

// Issues a signed auth-token for local testing against the edge gate.
func cmdToken(opts *rootOptions) *cobra.Command {
	var subject, name, role string

	c := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed auth-token cookie value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return errors.New("--sub is required")
			}
			r, ok := goGate.LookupRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}

			s, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cfg, err := s.GateConfig(logger)
			if err != nil {
				return err
			}
			m, err := jwt.NewManager(cfg.JWTManagerConfig())
			if err != nil {
				return err
			}

			token, err := m.IssueNamed(subject, name, r.String())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	c.Flags().StringVar(&subject, "sub", "", "token subject (user id)")
	c.Flags().StringVar(&name, "name", "", "display name claim")
	c.Flags().StringVar(&role, "role", goGate.RoleClient.String(), "ADMIN|FRANCHISE|CLIENT")
	return c
}
