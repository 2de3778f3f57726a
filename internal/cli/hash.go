package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goGate/password"
)

// Hashes a password for insertion into admin_users.password_hash. The
// password is read from the first line of stdin unless --password is set.
func cmdHashPassword() *cobra.Command {
	var plain string

	c := &cobra.Command{
		Use:   "hash-password",
		Short: "Print an argon2id hash for a new admin password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if plain == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password on stdin")
				}
				plain = strings.TrimRight(line, "\r\n")
			}

			h, err := password.New(password.DefaultConfig())
			if err != nil {
				return err
			}
			hash, err := h.Hash(plain)
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	c.Flags().StringVar(&plain, "password", "", "password to hash (visible in shell history; prefer stdin)")
	return c
}
