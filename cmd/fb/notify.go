package main

import (
	"fmt"

	"github.com/zulandar/floorboard/internal/notify"
)

// newDispatcher builds the notification fan-out from config: the in-app
// inbox always, plus every chat platform and SMTP that has credentials.
func newDispatcher(e *env) (*notify.Dispatcher, error) {
	sinks := []notify.Sink{notify.NewInboxSink(e.store)}
	n := e.cfg.Notify

	if n.Slack.Enabled() {
		p, err := notify.NewSlackPoster(notify.SlackOpts{BotToken: n.Slack.BotToken, Channel: n.Slack.Channel})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notify.NewChatSink(p, n.Slack.Channel, e.store))
	}
	if n.Discord.Enabled() {
		p, err := notify.NewDiscordPoster(notify.DiscordOpts{BotToken: n.Discord.BotToken, Channel: n.Discord.Channel})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notify.NewChatSink(p, n.Discord.Channel, e.store))
	}
	if n.SMTP.Enabled() {
		s, err := notify.NewEmailSink(n.SMTP, e.store)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}

	d := notify.NewDispatcher(notify.Opts{Sinks: sinks, Logger: e.logger})
	e.logger.Debug().Strs("sinks", d.Sinks()).Msg("notification sinks ready")
	return d, nil
}

// digestPoster returns the chat poster the digest is sent through.
func digestPoster(e *env) (notify.Poster, error) {
	n := e.cfg.Notify
	switch e.cfg.Digest.Platform {
	case "slack":
		return notify.NewSlackPoster(notify.SlackOpts{BotToken: n.Slack.BotToken, Channel: n.Slack.Channel})
	case "discord":
		return notify.NewDiscordPoster(notify.DiscordOpts{BotToken: n.Discord.BotToken, Channel: n.Discord.Channel})
	default:
		return nil, fmt.Errorf("digest: no chat platform configured (set notify.slack or notify.discord)")
	}
}
