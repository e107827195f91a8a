package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/catdog-api/internal/version"
)

func newVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		// no configuration needed
		PersistentPreRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "%s %s (%s, %s/%s)\n", info.Service, info.Short(), info.GoVersion, info.GOOS, info.GOARCH); err != nil {
				return err
			}
			if info.BuildTime != "" {
				_, err := fmt.Fprintf(out, "built %s\n", info.BuildTime)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}
