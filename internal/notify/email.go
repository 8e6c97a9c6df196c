package notify

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"github.com/zulandar/floorboard/internal/config"
)

// mailSender is the part of gomail.Client the sink uses.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// EmailSink mails each message to the recipient's address.
type EmailSink struct {
	sender mailSender
	from   string
	dir    Directory
}

// NewEmailSink creates an EmailSink from SMTP settings.
func NewEmailSink(cfg config.SMTPConfig, dir Directory) (*EmailSink, error) {
	if dir == nil {
		return nil, fmt.Errorf("notify: email sink needs a user directory")
	}
	tlsPolicy := gomail.TLSOpportunistic
	if cfg.TLS {
		tlsPolicy = gomail.TLSMandatory
	}
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(tlsPolicy),
	}
	if cfg.Password != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp client: %w", err)
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &EmailSink{sender: client, from: from, dir: dir}, nil
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, msg Message) error {
	u, err := s.dir.GetUser(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("notify: email recipient %s: %w", msg.UserID, err)
	}
	if u.Email == "" {
		return fmt.Errorf("notify: user %s has no email address", msg.UserID)
	}

	m := gomail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("notify: set from: %w", err)
	}
	if err := m.To(u.Email); err != nil {
		return fmt.Errorf("notify: set to: %w", err)
	}
	m.Subject(subjectFor(msg))
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)

	if err := s.sender.DialAndSendWithContext(ctx, m); err != nil {
		var sendErr *gomail.SendError
		if errors.As(err, &sendErr) && sendErr.IsTemp() {
			return Temporary(fmt.Errorf("notify: send email to %s: %w", u.Email, err))
		}
		return fmt.Errorf("notify: send email to %s: %w", u.Email, err)
	}
	return nil
}

func subjectFor(msg Message) string {
	switch msg.Kind {
	case "production":
		return "Floorboard: new production task"
	case "":
		return "Floorboard notification"
	default:
		return "Floorboard: " + msg.Kind
	}
}
