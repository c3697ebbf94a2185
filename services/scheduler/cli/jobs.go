package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/92Bilal26/ai-junior-bilal/services/scheduler/config"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Validate the jobs file and list each job's next run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := config.Load(viper.GetViper())
		a, jobs, err := build(cfg, buildLogger(cfg.LogLevel, "scheduler"))
		if err != nil {
			return err
		}
		defer a.Close()

		runs := newScheduler(a, jobs).NextRuns()
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tCRON\tTYPE\tNEXT RUN")
		for _, j := range jobs {
			next := runs[j.Name]
			if next == "" {
				next = "(first tick)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.Name, j.Cron, j.Type, next)
		}
		return tw.Flush()
	},
}
