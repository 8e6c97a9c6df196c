package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// discordSession is the part of discordgo.Session the poster uses. Posting
// goes over REST, so the gateway is never opened.
type discordSession interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordPoster posts to Discord channels with a bot token.
type DiscordPoster struct {
	sess    discordSession
	channel string
	backoff time.Duration
}

// DiscordOpts holds parameters for creating a DiscordPoster.
type DiscordOpts struct {
	BotToken string
	Channel  string // default channel ID
	// For testing: inject a session instead of the real Discord API.
	Session discordSession
}

// NewDiscordPoster creates a DiscordPoster.
func NewDiscordPoster(opts DiscordOpts) (*DiscordPoster, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	sess := opts.Session
	if sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		sess = dg
	}
	return &DiscordPoster{sess: sess, channel: opts.Channel, backoff: 2 * time.Second}, nil
}

func (d *DiscordPoster) Platform() string { return "discord" }

// Post sends p as a message with one embed when a title or fields are set.
func (d *DiscordPoster) Post(ctx context.Context, p Post) error {
	channel := p.Channel
	if channel == "" {
		channel = d.channel
	}
	if channel == "" {
		return fmt.Errorf("notify: discord: no channel specified")
	}
	data := discordMessage(p)

	wait := d.backoff
	for attempt := 0; ; attempt++ {
		_, err := d.sess.ChannelMessageSendComplex(channel, data, discordgo.WithContext(ctx))
		if err == nil {
			return nil
		}
		if !discordRateLimited(err) {
			return fmt.Errorf("notify: discord post: %w", err)
		}
		if attempt == maxRateLimitRetries {
			return Temporary(fmt.Errorf("notify: discord post: %w", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func discordRateLimited(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusTooManyRequests
}

func discordMessage(p Post) *discordgo.MessageSend {
	data := &discordgo.MessageSend{Content: p.Text}
	if p.Title == "" && len(p.Fields) == 0 {
		return data
	}
	embed := &discordgo.MessageEmbed{Title: p.Title}
	if p.Color != "" {
		embed.Color = parseHexColor(p.Color)
	}
	for _, f := range p.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Short})
	}
	data.Embeds = []*discordgo.MessageEmbed{embed}
	return data
}

// parseHexColor converts "#36a64f" to 0x36a64f. Invalid digits are skipped.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		switch {
		case c >= '0' && c <= '9':
			color = color<<4 | int(c-'0')
		case c >= 'a' && c <= 'f':
			color = color<<4 | (int(c-'a') + 10)
		case c >= 'A' && c <= 'F':
			color = color<<4 | (int(c-'A') + 10)
		}
	}
	return color
}
