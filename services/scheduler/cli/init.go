package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultSchedulerYAML = `# AI Employee scheduler config
# Priority: CLI flag > environment > this file > default.

log_level:      "info"
metrics_addr:   ":9097"
check_interval: "15s"
leader_ttl:     "30s"

# root: "/path/to/ai-employee"        # or AI_EMPLOYEE_ROOT
# jobs_file: "/path/to/scheduler_jobs.yaml"
# redis_addr: "localhost:6379"        # enables leader election
`

const defaultJobsYAML = `# Scheduled jobs. Cron fields: minute hour day-of-month month day-of-week.
jobs:
  - name: weekly-report
    cron: "0 9 * * MON"
    title: Weekly report
    body: Summarise the tasks completed last week.
  - name: attendance
    cron: "30 8 * * 1-5"
    attendance: true
`

// newInitCmd returns an "init" subcommand writing defaultYAML to --config
// or ~/.ai-employee/<serviceName>.yaml. --with-jobs also writes a sample
// jobs file next to it.
func newInitCmd(serviceName, defaultYAML string) *cobra.Command {
	var force, withJobs bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest := cfgFile
			if dest == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("home dir: %w", err)
				}
				dest = filepath.Join(home, ".ai-employee", serviceName+".yaml")
			}
			if err := writeFile(cmd, dest, defaultYAML, force); err != nil {
				return err
			}
			if withJobs {
				return writeFile(cmd, filepath.Join(filepath.Dir(dest), "scheduler_jobs.yaml"), defaultJobsYAML, force)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")
	cmd.Flags().BoolVar(&withJobs, "with-jobs", false, "also write a sample jobs file")
	return cmd
}

func writeFile(cmd *cobra.Command, dest, content string, force bool) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", dest, err)
		}
	}
	if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "written %s\n", dest)
	return nil
}
