package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubjectPrefix namespaces change subjects: floorboard.<collection>.
const SubjectPrefix = "floorboard."

// ErrFeedDropped is returned by NATSBridge.Run when the hub closes the
// bridge's local feed before the context is done.
var ErrFeedDropped = errors.New("realtime: hub closed the relay feed")

// Conn is the part of a NATS connection the bridge uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Drain() error
}

// NATSBridge relays changes between this instance's Hub and other dashboard
// instances.
type NATSBridge struct {
	conn     Conn
	hub      *Hub
	instance string
	logger   zerolog.Logger
}

// Connect dials url and returns a bridge for hub.
func Connect(url, instance string, hub *Hub, logger zerolog.Logger) (*NATSBridge, error) {
	nc, err := nats.Connect(url, nats.Name("floorboard-"+instance))
	if err != nil {
		return nil, fmt.Errorf("realtime: nats connect: %w", err)
	}
	return NewNATSBridge(nc, instance, hub, logger), nil
}

// NewNATSBridge wraps an existing connection.
func NewNATSBridge(conn Conn, instance string, hub *Hub, logger zerolog.Logger) *NATSBridge {
	return &NATSBridge{conn: conn, hub: hub, instance: instance, logger: logger}
}

// Run forwards local changes to NATS and remote changes into the hub until
// ctx is cancelled, then returns nil. Losing the local feed any other way
// returns an error wrapping ErrFeedDropped.
func (b *NATSBridge) Run(ctx context.Context) error {
	subject := SubjectPrefix + ">"
	if _, err := b.conn.Subscribe(subject, b.receive); err != nil {
		return fmt.Errorf("realtime: nats subscribe %q: %w", subject, err)
	}
	b.logger.Info().Str("subject", subject).Msg("NATS bridge subscribed")

	local := b.hub.Subscribe(func(c Change) bool { return c.Origin == "" })
	defer local.Close()

	for {
		select {
		case <-ctx.Done():
			return b.Close()
		case c, ok := <-local.C():
			if !ok {
				if ctx.Err() != nil {
					return b.Close()
				}
				reason := "dropped for falling behind"
				if b.hub.Stopped() {
					reason = "hub stopped"
				}
				b.logger.Error().Str("reason", reason).Msg("NATS bridge lost its local feed")
				return errors.Join(fmt.Errorf("%w: %s", ErrFeedDropped, reason), b.Close())
			}
			b.send(c)
		}
	}
}

func (b *NATSBridge) send(c Change) {
	if err := b.Publish(c); err != nil {
		b.logger.Warn().Err(err).Str("collection", c.Collection).Msg("nats: publish failed")
	}
}

// Publish relays one change to the other instances without going through
// the hub. Processes that write without serving, such as the CLI, announce
// their changes this way and then Close.
func (b *NATSBridge) Publish(c Change) error {
	c.Origin = b.instance
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("realtime: marshal change: %w", err)
	}
	if err := b.conn.Publish(SubjectPrefix+c.Collection, data); err != nil {
		return fmt.Errorf("realtime: nats publish %s: %w", c.Collection, err)
	}
	return nil
}

func (b *NATSBridge) receive(msg *nats.Msg) {
	var c Change
	if err := json.Unmarshal(msg.Data, &c); err != nil {
		b.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("nats: bad change payload")
		return
	}
	if c.Origin == "" || c.Origin == b.instance {
		return
	}
	b.hub.Publish(c)
}

// Close flushes pending publishes and closes the connection.
func (b *NATSBridge) Close() error {
	if err := b.conn.Drain(); err != nil {
		return fmt.Errorf("realtime: nats drain: %w", err)
	}
	return nil
}
