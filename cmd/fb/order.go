package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/board"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/task"
)

func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Production order commands",
	}

	cmd.AddCommand(newOrderListCmd())
	cmd.AddCommand(newOrderStagesCmd())
	cmd.AddCommand(newOrderProductionCmd())
	return cmd
}

func newOrderListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List production orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			orders, err := e.store.ListOrders(context.Background())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(orders) == 0 {
				fmt.Fprintln(out, "No orders found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNUMBER\tPRODUCT\tCYCLE\tQTY\tDEADLINE")
			for _, o := range orders {
				cycle := o.WorkCycleID
				if cycle == "" {
					cycle = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
					o.ID, o.OrderNumber, o.ProductID, cycle, o.Quantity, formatDeadline(o.Deadline))
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

// adminBoard returns a board controller acting as an admin with the given
// id, which is what CLI production runs are recorded as.
func adminBoard(e *env, actorID string, notifier board.Notifier) (*board.Controller, error) {
	cache, err := access.NewCache(access.CacheOpts{Source: e.store, Logger: e.logger})
	if err != nil {
		return nil, err
	}
	actor := access.Actor{ID: actorID, Role: access.RoleAdmin}
	return board.New(board.Opts{
		Backend:        e.store,
		Checker:        access.NewChecker(cache, &actor),
		Notifier:       notifier,
		DuplicateGuard: e.cfg.Dashboard.DuplicateGuard,
		Logger:         e.logger,
	})
}

func newOrderStagesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stages <order-id>",
		Short: "Show the order's job-cycle stages with their default assignees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := context.Background()
			order, err := e.store.Order(ctx, args[0])
			if err != nil {
				return err
			}
			if order.WorkCycleID == "" {
				return fmt.Errorf("%w: order %s has no job cycle", production.ErrNoStages, order.OrderNumber)
			}
			cycle, err := e.store.JobCycle(ctx, order.WorkCycleID)
			if err != nil {
				return err
			}
			defaults := production.DefaultsFor(*cycle)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STAGE\tNAME\tMACHINE\tDEFAULT ASSIGNEES")
			for _, st := range cycle.Stages {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.ID, st.Name, st.Machine, formatAssignees(defaults[st.ID].AssigneeIDs))
			}
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newOrderProductionCmd() *cobra.Command {
	var (
		configPath  string
		actor       string
		stages      []string
		priority    string
		deadline    string
		description string
	)

	cmd := &cobra.Command{
		Use:   "production <order-id>",
		Short: "Create one production task per assigned stage of an order",
		Long: `Expands the order's job cycle into production tasks, one per stage with at
least one assignee, and notifies every assignee. Stages are given as
--stage stage-id=user1,user2[:quantity]; a stage without assignees is skipped.

Tasks are created one by one. If one fails, the tasks already created stay
and the rest are not attempted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form := board.ProductionForm{OrderID: args[0], Stages: make(map[string]production.StageInput), Description: description}
			for _, v := range stages {
				id, in, err := parseStageFlag(v)
				if err != nil {
					return err
				}
				form.Stages[id] = in
			}
			p, err := task.ParsePriority(priority)
			if err != nil {
				return err
			}
			form.Priority = p
			if form.Deadline, err = parseDeadline(deadline); err != nil {
				return err
			}
			return runOrderProduction(cmd, configPath, actor, form)
		},
	}

	addConfigFlag(cmd, &configPath)
	addActorFlag(cmd, &actor)
	cmd.Flags().StringArrayVar(&stages, "stage", nil, "stage assignment stage-id=user[,user...][:quantity] (repeatable)")
	cmd.Flags().StringVar(&priority, "priority", "medium", "priority (low, medium, high)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (defaults to the order deadline)")
	cmd.Flags().StringVar(&description, "description", "", "description copied to every task")
	return cmd
}

func runOrderProduction(cmd *cobra.Command, configPath, actor string, form board.ProductionForm) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	dispatcher, err := newDispatcher(e)
	if err != nil {
		return err
	}
	b, err := adminBoard(e, actor, dispatcher)
	if err != nil {
		return err
	}

	outcome, err := b.CreateProduction(context.Background(), form)
	printProduction(cmd, outcome)
	return err
}

func printProduction(cmd *cobra.Command, outcome board.ProductionOutcome) {
	out := cmd.OutOrStdout()
	res := outcome.Result
	for _, t := range res.Created {
		fmt.Fprintf(out, "Created %s  %s  -> %s\n", t.ID, t.Title, formatAssignees(t.AssigneeIDs))
	}
	skipped := append([]string(nil), res.Skipped...)
	sort.Strings(skipped)
	for _, id := range skipped {
		fmt.Fprintf(out, "Skipped stage %s: already has a task\n", id)
	}
	if res.Failed != nil {
		fmt.Fprintf(out, "Failed at stage %s (%s): %v\n", res.Failed.StageID, res.Failed.Title, res.Failed.Err)
		if res.NotAttempted > 0 {
			fmt.Fprintf(out, "%s not attempted\n", plural(res.NotAttempted, "stage"))
		}
	}
	if outcome.Report.Delivered > 0 || len(outcome.Report.Failed) > 0 {
		fmt.Fprintf(out, "Notifications: %d delivered", outcome.Report.Delivered)
		if n := len(outcome.Report.Failed); n > 0 {
			fmt.Fprintf(out, ", %d failed", n)
		}
		fmt.Fprintln(out)
	}
}
