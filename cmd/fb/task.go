package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/floorboard/internal/store"
	"github.com/zulandar/floorboard/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task commands",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskMoveCmd())
	cmd.AddCommand(newTaskArchiveCmd())
	cmd.AddCommand(newTaskRestoreCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskTrashCmd())
	cmd.AddCommand(newTaskReportCmd())
	cmd.AddCommand(newTaskApproveCmd())
	return cmd
}

func addActorFlag(cmd *cobra.Command, actor *string) {
	cmd.Flags().StringVar(actor, "as", cliActor, "user id recorded as the actor of the change")
}

func newTaskCreateCmd() *cobra.Command {
	var (
		configPath  string
		actor       string
		title       string
		description string
		priority    string
		deadline    string
		assignees   []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a simple task",
		Long:  "Creates a simple task in the To Do column. Assigned users see it on their boards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := task.ParsePriority(priority)
			if err != nil {
				return err
			}
			d, err := parseDeadline(deadline)
			if err != nil {
				return err
			}
			return runTaskCreate(cmd, configPath, task.Task{
				Title:       title,
				Description: description,
				Priority:    p,
				Deadline:    d,
				AssigneeIDs: assignees,
				CreatedBy:   actor,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	cmd.Flags().StringVar(&title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&priority, "priority", "medium", "priority (low, medium, high)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringSliceVar(&assignees, "assignee", nil, "assigned user id (repeatable)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func runTaskCreate(cmd *cobra.Command, configPath string, t task.Task) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	created, err := e.store.CreateTask(context.Background(), t)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task %s\n", created.ID)
	return nil
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		user       string
		status     string
		orderID    string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live tasks",
		Long:  "Lists live tasks, newest first. With --user only that user's assigned tasks are shown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := store.TaskQuery{ActorID: user, AllTasks: user == "", OrderID: orderID, Limit: limit}
			if status != "" {
				s, err := task.ParseStatus(status)
				if err != nil {
					return err
				}
				q.Statuses = []task.Status{s}
			}
			return runTaskList(cmd, configPath, q)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&user, "user", "", "only tasks assigned to this user id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (todo, in_progress, done, archived)")
	cmd.Flags().StringVar(&orderID, "order", "", "filter by order id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of tasks (0 = no limit)")
	return cmd
}

func runTaskList(cmd *cobra.Command, configPath string, q store.TaskQuery) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	tasks, err := e.store.ListTasks(context.Background(), q)
	if err != nil {
		return err
	}
	printTasks(cmd, tasks)
	return nil
}

func printTasks(cmd *cobra.Command, tasks []task.Task) {
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPRI\tASSIGNEES\tPROGRESS\tDEADLINE")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, truncate(t.Title, 40), t.Status, t.Priority,
			formatAssignees(t.AssigneeIDs), formatProgress(t), formatDeadline(t.Deadline))
	}
	w.Flush()
}

func newTaskShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskShow(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runTaskShow(cmd *cobra.Command, configPath, id string) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := context.Background()
	t, err := e.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", t.ID)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	fmt.Fprintf(out, "Type:        %s\n", t.Type)
	fmt.Fprintf(out, "Status:      %s\n", t.Status)
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority)
	fmt.Fprintf(out, "Assignees:   %s\n", formatAssignees(t.AssigneeIDs))
	fmt.Fprintf(out, "Deadline:    %s\n", formatDeadline(t.Deadline))
	if t.CreatedBy != "" {
		fmt.Fprintf(out, "Created by:  %s\n", t.CreatedBy)
	}
	if t.IsDeleted() {
		fmt.Fprintf(out, "Deleted:     %s\n", formatDeadline(t.DeletedAt))
	}
	if t.IsProduction() {
		fmt.Fprintf(out, "Order:       %s\n", t.OrderID)
		fmt.Fprintf(out, "Stage:       %s\n", t.StageID)
		fmt.Fprintf(out, "Progress:    %s\n", formatProgress(t))
		if t.IsFinalStage {
			fmt.Fprintln(out, "Final stage: yes")
		}
	}
	if t.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", t.Description)
	}

	events, err := e.store.TaskEvents(ctx, id)
	if err != nil {
		return err
	}
	if len(events) > 0 {
		fmt.Fprintln(out, "\nHistory:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, ev := range events {
			change := ev.ToStatus
			if ev.FromStatus != "" && ev.FromStatus != ev.ToStatus {
				change = ev.FromStatus + " -> " + ev.ToStatus
			}
			qty := ""
			if ev.Quantity != 0 {
				qty = fmt.Sprintf("qty %d", ev.Quantity)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
				ev.CreatedAt.Local().Format("2006-01-02 15:04"), ev.Action, ev.ActorID, change, qty)
		}
		w.Flush()
	}
	return nil
}

// newTaskMutationCmd builds a command that applies one store mutation to
// the task named by the first argument.
func newTaskMutationCmd(use, short string, nargs cobra.PositionalArgs, apply func(ctx context.Context, s *store.Store, actor string, args []string) (task.Task, error)) *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  nargs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			t, err := apply(context.Background(), e.store, actor, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s: %s", t.ID, t.Status)
			if t.IsProduction() {
				fmt.Fprintf(cmd.OutOrStdout(), ", %s", formatProgress(t))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	return cmd
}

func newTaskMoveCmd() *cobra.Command {
	return newTaskMutationCmd("move <id> <todo|in_progress|done>", "Move an active task to another column", cobra.ExactArgs(2),
		func(ctx context.Context, s *store.Store, actor string, args []string) (task.Task, error) {
			to, err := task.ParseStatus(args[1])
			if err != nil {
				return task.Task{}, err
			}
			return s.MoveTask(ctx, actor, args[0], to)
		})
}

func newTaskArchiveCmd() *cobra.Command {
	return newTaskMutationCmd("archive <id>", "Move an active task to the archive", cobra.ExactArgs(1),
		func(ctx context.Context, s *store.Store, actor string, args []string) (task.Task, error) {
			return s.ArchiveTask(ctx, actor, args[0])
		})
}

func newTaskRestoreCmd() *cobra.Command {
	return newTaskMutationCmd("restore <id> [status]", "Return an archived task to the board (default todo)", cobra.RangeArgs(1, 2),
		func(ctx context.Context, s *store.Store, actor string, args []string) (task.Task, error) {
			to := task.StatusTodo
			if len(args) > 1 {
				var err error
				if to, err = task.ParseStatus(args[1]); err != nil {
					return task.Task{}, err
				}
			}
			return s.RestoreTask(ctx, actor, args[0], to)
		})
}

func newTaskDeleteCmd() *cobra.Command {
	var yes bool
	cmd := newTaskMutationCmd("delete <id>", "Soft-delete a task", cobra.ExactArgs(1),
		func(ctx context.Context, s *store.Store, actor string, args []string) (task.Task, error) {
			if !yes {
				return task.Task{}, fmt.Errorf("refusing to delete %s without --yes", args[0])
			}
			return s.SoftDeleteTask(ctx, actor, args[0])
		})
	cmd.Long = "Marks a task deleted. It disappears from every board but stays listed by `fb task trash`."
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

func newTaskReportCmd() *cobra.Command {
	var completed, pending int
	cmd := newTaskMutationCmd("report <id>", "Record output on a production task", cobra.ExactArgs(1),
		func(ctx context.Context, s *store.Store, actor string, args []string) (task.Task, error) {
			if completed == 0 && pending == 0 {
				return task.Task{}, fmt.Errorf("nothing to report: set --completed or --pending")
			}
			return s.ReportQuantity(ctx, actor, args[0], completed, pending)
		})
	cmd.Long = "Adds completed and pending quantities to a production task. Negative values correct earlier reports."
	cmd.Flags().IntVar(&completed, "completed", 0, "approved output to add")
	cmd.Flags().IntVar(&pending, "pending", 0, "output awaiting approval to add")
	return cmd
}

func newTaskApproveCmd() *cobra.Command {
	return newTaskMutationCmd("approve <id> <quantity>", "Approve pending output on a production task", cobra.ExactArgs(2),
		func(ctx context.Context, s *store.Store, actor string, args []string) (task.Task, error) {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return task.Task{}, fmt.Errorf("quantity %q is not a number", args[1])
			}
			return s.ApprovePending(ctx, actor, args[0], qty)
		})
}

func newTaskTrashCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "trash",
		Short: "List soft-deleted tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			tasks, err := e.store.Trash(context.Background())
			if err != nil {
				return err
			}
			printTasks(cmd, tasks)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
