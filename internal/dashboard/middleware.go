package dashboard

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/store"
)

const (
	ctxActor   = "actor"
	ctxChecker = "checker"
)

// Authenticate resolves the Bearer token to an actor. The user row is read
// on every request so deactivation and role changes apply without waiting
// for the token to expire. Browsers cannot set headers on EventSource and
// websocket requests, so those may pass the token as ?token=.
func (s *Server) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "authorization header required")
			return
		}
		claimed, err := s.issuer.Validate(token)
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		u, err := s.store.GetUser(c.Request.Context(), claimed.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				abortJSON(c, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			s.logger.Error().Err(err).Str("actor", claimed.ID).Msg("load user")
			abortJSON(c, http.StatusInternalServerError, "user lookup failed")
			return
		}
		if !u.Active {
			abortJSON(c, http.StatusUnauthorized, "account is disabled")
			return
		}

		actor := &access.Actor{ID: u.ID, Role: u.Role}
		chk := access.NewChecker(s.cache, actor)
		if err := chk.Refresh(c.Request.Context()); err != nil {
			s.logger.Warn().Err(err).Str("role", actor.Role).Msg("permissions unavailable")
		}
		c.Set(ctxActor, *actor)
		c.Set(ctxChecker, chk)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if t := c.Query("token"); t != "" {
		return t, true
	}
	return "", false
}

// RequireModule aborts with 403 unless the actor holds level on key.
func RequireModule(key access.ModuleKey, level access.Level) gin.HandlerFunc {
	return func(c *gin.Context) {
		chk := checkerFrom(c)
		if chk == nil {
			abortJSON(c, http.StatusUnauthorized, "not authenticated")
			return
		}
		if err := chk.Require(key, level); err != nil {
			abortJSON(c, http.StatusForbidden, err.Error())
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) access.Actor {
	v, _ := c.Get(ctxActor)
	a, _ := v.(access.Actor)
	return a
}

func checkerFrom(c *gin.Context) *access.Checker {
	v, _ := c.Get(ctxChecker)
	chk, _ := v.(*access.Checker)
	return chk
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, apiError{Message: msg})
}
