package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	goGate "github.com/MrEthical07/goGate"
)

// Prints the reverse-proxy rewrite table derived from the route table.
func cmdRewrites() *cobra.Command {
	var verifyPath string
	var table string

	c := &cobra.Command{
		Use:   "rewrites",
		Short: "Print the verify-redirect rewrite rules as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var routes goGate.RouteTable
			switch table {
			case "edge":
				routes = goGate.DefaultRouteTable()
			case "legacy":
				routes = goGate.LegacyRouteTable()
			default:
				return fmt.Errorf("unknown table %q (want edge or legacy)", table)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(routes.RewriteRules(verifyPath))
		},
	}
	c.Flags().StringVar(&verifyPath, "verify-path", goGate.DefaultConfig().Paths.Verify, "verify endpoint path")
	c.Flags().StringVar(&table, "table", "edge", "route table: edge|legacy")
	return c
}
