package dashboard

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/realtime"
)

const heartbeatPeriod = 15 * time.Second

// feedFilter scopes the change feed to what actor may see: workers only get
// tasks they are assigned to and their own notifications.
func feedFilter(actor access.Actor) realtime.Filter {
	return realtime.And(
		realtime.ForCollections(
			realtime.CollectionTasks,
			realtime.CollectionNotifications,
			realtime.CollectionRoles,
			realtime.CollectionOrders,
			realtime.CollectionUsers,
		),
		realtime.ForActor(actor.ID, actor.IsAdmin()),
	)
}

// handleSSE streams the actor's change feed. Each change is sent as an event
// named after its collection.
func (s *Server) handleSSE(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	actor := actorFrom(c)
	if s.hub == nil {
		writeSSE(c.Writer, "connected", map[string]string{"actor": actor.ID})
		c.Writer.Flush()
		return
	}
	sub := s.hub.Subscribe(feedFilter(actor))
	defer sub.Close()
	writeSSE(c.Writer, "connected", map[string]string{"actor": actor.ID})
	c.Writer.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case ch, ok := <-sub.C():
			if !ok {
				// Dropped as a slow consumer or the hub stopped; the client
				// reconnects and reloads.
				writeSSE(c.Writer, "reset", map[string]string{"reason": "feed closed"})
				c.Writer.Flush()
				return
			}
			writeSSE(c.Writer, ch.Collection, ch)
			c.Writer.Flush()
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}

// handleWebSocket streams the same feed as handleSSE over a websocket.
func (s *Server) handleWebSocket(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, apiError{Message: "live updates are not enabled"})
		return
	}
	actor := actorFrom(c)
	conn, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug().Err(err).Str("actor", actor.ID).Msg("websocket upgrade failed")
		return
	}
	realtime.NewClient(s.hub, conn, feedFilter(actor), s.logger.With().Str("actor", actor.ID).Logger()).Serve()
}
