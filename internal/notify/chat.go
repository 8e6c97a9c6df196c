package notify

import (
	"context"
	"fmt"

	"github.com/zulandar/floorboard/internal/store"
)

// Post is a message for a chat channel. Fields render as an attachment
// (Slack) or embed (Discord) when present.
type Post struct {
	Channel string
	Text    string
	Title   string
	Color   string
	Fields  []Field
}

// Field is a key-value pair shown with a Post.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Poster sends posts to a chat platform.
type Poster interface {
	Platform() string
	Post(ctx context.Context, p Post) error
}

// Directory looks up users for sinks that address them by name or email.
type Directory interface {
	GetUser(ctx context.Context, id string) (store.User, error)
}

// ChatSink announces messages in a shared channel, mentioning the user by
// name when a Directory is available.
type ChatSink struct {
	poster  Poster
	channel string
	dir     Directory
}

// NewChatSink creates a ChatSink posting to channel. dir may be nil.
func NewChatSink(p Poster, channel string, dir Directory) *ChatSink {
	return &ChatSink{poster: p, channel: channel, dir: dir}
}

func (s *ChatSink) Name() string { return s.poster.Platform() }

func (s *ChatSink) Deliver(ctx context.Context, msg Message) error {
	who := msg.UserID
	if s.dir != nil {
		if u, err := s.dir.GetUser(ctx, msg.UserID); err == nil && u.Name != "" {
			who = u.Name
		}
	}
	p := Post{Channel: s.channel, Text: fmt.Sprintf("%s: %s", who, msg.Text)}
	if msg.TaskID != "" {
		p.Fields = []Field{{Name: "Task", Value: msg.TaskID, Short: true}}
	}
	return s.poster.Post(ctx, p)
}
