package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
)

const maxRateLimitRetries = 3

// slackClient is the part of the Slack Web API the poster uses.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackPoster posts to Slack channels with a bot token.
type SlackPoster struct {
	client  slackClient
	channel string
}

// SlackOpts holds parameters for creating a SlackPoster.
type SlackOpts struct {
	BotToken string // xoxb-...
	Channel  string // default channel
	// For testing: inject a client instead of the real Slack API.
	Client slackClient
}

// NewSlackPoster creates a SlackPoster.
func NewSlackPoster(opts SlackOpts) (*SlackPoster, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: slack bot token is required")
	}
	c := opts.Client
	if c == nil {
		c = slackapi.New(opts.BotToken)
	}
	return &SlackPoster{client: c, channel: opts.Channel}, nil
}

func (s *SlackPoster) Platform() string { return "slack" }

// Post sends p, waiting out Slack rate limits. A rate limit that outlasts
// the retries is reported as temporary.
func (s *SlackPoster) Post(ctx context.Context, p Post) error {
	channel := p.Channel
	if channel == "" {
		channel = s.channel
	}
	if channel == "" {
		return fmt.Errorf("notify: slack: no channel specified")
	}
	options := slackOptions(p)
	err := retryOnRateLimit(ctx, func() error {
		_, _, err := s.client.PostMessageContext(ctx, channel, options...)
		return err
	})
	if err != nil {
		var rle *slackapi.RateLimitedError
		if errors.As(err, &rle) {
			return Temporary(fmt.Errorf("notify: slack post: %w", err))
		}
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}

func slackOptions(p Post) []slackapi.MsgOption {
	options := []slackapi.MsgOption{slackapi.MsgOptionText(p.Text, false)}
	if p.Title == "" && len(p.Fields) == 0 {
		return options
	}
	att := slackapi.Attachment{Title: p.Title, Color: p.Color, Fallback: p.Text}
	for _, f := range p.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: f.Short})
	}
	return append(options, slackapi.MsgOptionAttachments(att))
}

// retryOnRateLimit calls fn and retries on Slack rate limit errors, honouring
// RetryAfter when Slack sends one.
func retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRateLimitRetries {
			return err
		}
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
