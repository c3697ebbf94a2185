package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/92Bilal26/ai-junior-bilal/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String("scheduler"))
	},
}
