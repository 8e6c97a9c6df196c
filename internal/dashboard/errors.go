package dashboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/zulandar/floorboard/internal/access"
	"github.com/zulandar/floorboard/internal/auth"
	"github.com/zulandar/floorboard/internal/board"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/store"
	"github.com/zulandar/floorboard/internal/task"
)

// apiError is the body of every non-2xx response.
type apiError struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// statusFor maps a domain error to its HTTP status.
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, board.ErrPartialFanOut):
		return http.StatusMultiStatus
	case errors.Is(err, access.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound), errors.Is(err, board.ErrUnknownTask),
		errors.Is(err, access.ErrRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrInvalidTransition), errors.Is(err, task.ErrDeleted):
		return http.StatusConflict
	case errors.Is(err, board.ErrNotConfirmed), errors.Is(err, access.ErrUnknownModule),
		errors.Is(err, production.ErrNoStages), errors.Is(err, production.ErrNothingAssigned),
		errors.Is(err, task.ErrInvalid),
		errors.As(err, &verrs):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Server errors are logged
// and their detail withheld from the client.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, apiError{Message: "internal error"})
		return
	}
	c.JSON(status, apiError{Message: err.Error()})
}

// bind decodes a JSON body into dto and validates it.
func (s *Server) bind(c *gin.Context, dto any) bool {
	if err := c.ShouldBindJSON(dto); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Message: err.Error()})
		return false
	}
	if err := s.validate.Struct(dto); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Message: err.Error()})
		return false
	}
	return true
}
