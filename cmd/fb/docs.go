package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/floorboard/internal/techdoc"
)

func newDocsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "docs <task-id>",
		Short: "Show the setup map and drawing for a task",
		Long: `Resolves a task's technical documentation: the setup map linked from its
job-cycle stage, or one matched by name, and the product or setup-map drawing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocs(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDocs(cmd *cobra.Command, configPath, id string) error {
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
	res := techdoc.NewResolver(techdoc.ResolverOpts{Source: e.store, Logger: e.logger}).Resolve(ctx, t)
	printDocs(cmd, res)
	return nil
}

func printDocs(cmd *cobra.Command, res techdoc.Result) {
	out := cmd.OutOrStdout()
	if res.Empty() {
		fmt.Fprintf(out, "No documentation for %s.\n", res.TaskID)
		return
	}
	if res.DrawingURL != nil {
		fmt.Fprintf(out, "Drawing:     %s (from %s)\n", *res.DrawingURL, res.DrawingSource)
	}
	sm := res.SetupMap
	if sm == nil {
		return
	}
	fmt.Fprintf(out, "Setup map:   %s %s (%s match)\n", sm.ID, sm.Name, res.Matched)
	if sm.PhotoURL != "" {
		fmt.Fprintf(out, "Photo:       %s\n", sm.PhotoURL)
	}
	if len(sm.Blocks) > 0 {
		fmt.Fprintln(out)
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tNAME\tSETTINGS")
		for _, b := range sm.Blocks {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.ToolNumber, b.ToolName, b.Settings)
		}
		w.Flush()
	}
}
