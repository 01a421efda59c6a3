package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect task history",
	Long:  "Commands for listing and viewing lead generation tasks.",
}

// -- tasks list --

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		tasks, err := st.ListTasks(ctx, store.TaskFilter{
			Status: model.TaskStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "tasks list")
		}

		if len(tasks) == 0 {
			fmt.Fprintln(os.Stderr, "No tasks found.")
			return nil
		}

		formatTaskList(os.Stdout, tasks)
		return nil
	},
}

// -- tasks show --

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show full details of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		task, err := st.GetTask(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "tasks show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(task)
	},
}

func formatTaskList(w io.Writer, tasks []model.SearchTask) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tQUERIES\tLOCATION\tBASE\tCONTACTS\tSAVED\tREVIEW\tCREATED")
	for _, t := range tasks {
		review := ""
		if t.NeedsReview {
			review = "yes"
		}
		queries := ""
		if len(t.Queries) > 0 {
			queries = t.Queries[0]
			if len(t.Queries) > 1 {
				queries += fmt.Sprintf(" (+%d)", len(t.Queries)-1)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			t.ID,
			t.Status,
			queries,
			t.Location.String(),
			t.BaseCount,
			t.ContactCount,
			t.SavedCount,
			review,
			t.CreatedAt.Format(time.RFC3339),
		)
	}
	tw.Flush()
}

func init() {
	tasksListCmd.Flags().String("status", "", "filter by status")
	tasksListCmd.Flags().Int("limit", 50, "max tasks to list")
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksShowCmd)
	rootCmd.AddCommand(tasksCmd)
}
