package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/floorboard/internal/digest"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Production digest commands",
	}

	cmd.AddCommand(newDigestRunCmd())
	return cmd
}

func newDigestRunCmd() *cobra.Command {
	var (
		configPath string
		window     time.Duration
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the production digest now",
		Long: `Builds the digest for the window ending now and posts it to the configured
chat channel. With --dry-run the digest is printed instead. Empty periods
are never posted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, configPath, window, dryRun)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "period covered by the digest")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the digest instead of posting it")
	return cmd
}

func runDigest(cmd *cobra.Command, configPath string, window time.Duration, dryRun bool) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()
	if dryRun {
		until := time.Now()
		report, err := digest.Build(ctx, e.store, until.Add(-window), until)
		if err != nil {
			return err
		}
		if report.Empty() {
			fmt.Fprintln(out, "No floor activity in the period.")
			return nil
		}
		post := digest.Format(report)
		fmt.Fprintf(out, "%s\n\n%s\n", post.Title, post.Text)
		return nil
	}

	sched, err := newDigestScheduler(e, cronOrDaily(e.cfg.Digest.Cron), window)
	if err != nil {
		return err
	}
	sent, err := sched.Fire(ctx)
	if err != nil {
		return err
	}
	if sent {
		fmt.Fprintf(out, "Digest posted to %s.\n", e.cfg.Digest.Platform)
	} else {
		fmt.Fprintln(out, "No floor activity in the period; nothing posted.")
	}
	return nil
}

// newDigestScheduler wires the digest to the configured chat platform. A
// zero window uses the scheduler default.
func newDigestScheduler(e *env, cronExpr string, window time.Duration) (*digest.Scheduler, error) {
	poster, err := digestPoster(e)
	if err != nil {
		return nil, err
	}
	return digest.NewScheduler(digest.SchedulerOpts{
		Source:  e.store,
		Poster:  poster,
		Channel: e.cfg.Digest.Channel,
		Cron:    cronExpr,
		Window:  window,
		Logger:  e.logger.With().Str("component", "digest").Logger(),
	})
}

// cronOrDaily lets one-off runs work without a configured schedule.
func cronOrDaily(expr string) string {
	if expr == "" {
		return "@daily"
	}
	return expr
}
