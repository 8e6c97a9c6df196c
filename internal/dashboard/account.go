package dashboard

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/auth"
	"github.com/zulandar/floorboard/internal/store"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if !s.bind(c, &req) {
		return
	}
	sess, err := auth.Login(c.Request.Context(), s.store, s.issuer, req.Email, req.Password)
	if err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			s.logger.Info().Str("email", req.Email).Msg("login rejected")
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

type meResponse struct {
	User        store.User                             `json:"user"`
	Permissions map[access.ModuleKey]access.Permission `json:"permissions"`
}

func (s *Server) handleMe(c *gin.Context) {
	u, err := s.store.GetUser(c.Request.Context(), actorFrom(c).ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meResponse{User: u, Permissions: checkerFrom(c).Effective()})
}

func (s *Server) handleNotifications(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.Query("unread"))
	limit := defaultNotificationLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, apiError{Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxNotificationLimit)
	}
	list, err := s.store.Notifications(c.Request.Context(), actorFrom(c).ID, unread, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []store.Notification{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleMarkRead(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, apiError{Message: "invalid notification id"})
		return
	}
	if err := s.store.MarkRead(c.Request.Context(), actorFrom(c).ID, uint(id)); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
