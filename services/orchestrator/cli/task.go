package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/92Bilal26/ai-junior-bilal/internal/app"
	"github.com/92Bilal26/ai-junior-bilal/internal/vault"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Work with vault tasks",
}

var (
	taskTitle    string
	taskBody     string
	taskType     string
	taskPriority string
	taskPlan     bool
)

func init() {
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Create a task in Needs_Action",
		RunE: withApp(func(cmd *cobra.Command, a *app.App) error {
			t, err := a.Store.CreateTask(vault.NewTask{
				Title:    taskTitle,
				Body:     taskBody,
				Type:     taskType,
				Source:   "cli",
				Priority: taskPriority,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.Store.Rel(a.Store.Path(t)))
			if !taskPlan {
				return nil
			}
			n, err := a.Planner.Cycle(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "planned %d\n", n)
			return nil
		}),
	}
	newCmd.Flags().StringVar(&taskTitle, "title", "New Task", "task title")
	newCmd.Flags().StringVar(&taskBody, "body", "", "task body (markdown)")
	newCmd.Flags().StringVar(&taskType, "type", "task", "task type, e.g. claude_task, claude_app, email")
	newCmd.Flags().StringVar(&taskPriority, "priority", "normal", "task priority")
	newCmd.Flags().BoolVar(&taskPlan, "plan", false, "run the planner right after creating the task")
	taskCmd.AddCommand(newCmd)
}
