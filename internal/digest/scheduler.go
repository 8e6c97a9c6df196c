package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/zulandar/floorboard/internal/notify"
)

// cronParser accepts standard 5-field cron expressions (minute, hour, dom,
// month, dow) and descriptors such as @daily.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

const defaultWindow = 24 * time.Hour

// SchedulerOpts holds parameters for creating a Scheduler.
type SchedulerOpts struct {
	Source  Source
	Poster  notify.Poster
	Channel string // empty uses the poster's default
	Cron    string
	Window  time.Duration // period covered by each digest; default 24h
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Scheduler posts a digest on every cron tick, skipping empty periods.
type Scheduler struct {
	src      Source
	poster   notify.Poster
	channel  string
	schedule cron.Schedule
	window   time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewScheduler validates opts.
func NewScheduler(opts SchedulerOpts) (*Scheduler, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("digest: source is required")
	}
	if opts.Poster == nil {
		return nil, fmt.Errorf("digest: poster is required")
	}
	sched, err := cronParser.Parse(opts.Cron)
	if err != nil {
		return nil, fmt.Errorf("digest: cron %q: %w", opts.Cron, err)
	}
	window := opts.Window
	if window <= 0 {
		window = defaultWindow
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		src:      opts.Source,
		poster:   opts.Poster,
		channel:  opts.Channel,
		schedule: sched,
		window:   window,
		logger:   opts.Logger,
		now:      now,
	}, nil
}

// Next returns the first fire time after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run fires digests on schedule until ctx is done. A failed digest is
// logged and the next tick proceeds.
func (s *Scheduler) Run(ctx context.Context) {
	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.Fire(ctx); err != nil {
			s.logger.Error().Err(err).Msg("digest failed")
		}
	}))
	c.Start()
	s.logger.Info().Time("next", s.Next(s.now())).Msg("digest scheduled")

	<-ctx.Done()
	<-c.Stop().Done()
}

// Fire builds the digest for the window ending now and posts it. It reports
// whether a post was sent; empty periods are suppressed.
func (s *Scheduler) Fire(ctx context.Context) (bool, error) {
	until := s.now()
	report, err := Build(ctx, s.src, until.Add(-s.window), until)
	if err != nil {
		return false, err
	}
	if report.Empty() {
		s.logger.Debug().Msg("no floor activity; digest suppressed")
		return false, nil
	}
	post := Format(report)
	post.Channel = s.channel
	if err := s.poster.Post(ctx, post); err != nil {
		return false, fmt.Errorf("digest: post to %s: %w", s.poster.Platform(), err)
	}
	s.logger.Info().Int("created", report.Created).Int("done", report.Done).Msg("digest posted")
	return true, nil
}
