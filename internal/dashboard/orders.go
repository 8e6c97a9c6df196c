package dashboard

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/floorboard/internal/board"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/task"
)

func (s *Server) handleListOrders(c *gin.Context) {
	orders, err := s.store.ListOrders(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) handleProductionDefaults(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	defaults, err := ctrl.ProductionDefaults(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": defaults})
}

type productionRequest struct {
	Stages      map[string]production.StageInput `json:"stages" validate:"required,min=1"`
	Priority    string                           `json:"priority" validate:"omitempty,oneof=low medium high"`
	Deadline    *time.Time                       `json:"deadline"`
	Description string                           `json:"description"`
}

type stageFailureView struct {
	StageID string `json:"stageId"`
	Title   string `json:"title"`
	Error   string `json:"error"`
}

type productionResponse struct {
	Created      []task.Task       `json:"created"`
	Skipped      []string          `json:"skipped"`
	Failed       *stageFailureView `json:"failed,omitempty"`
	NotAttempted int               `json:"notAttempted"`
	Notified     int               `json:"notified"`
	NotifyErrors []string          `json:"notifyErrors,omitempty"`
}

func productionView(out board.ProductionOutcome) productionResponse {
	resp := productionResponse{
		Created:      out.Result.Created,
		Skipped:      out.Result.Skipped,
		NotAttempted: out.Result.NotAttempted,
		Notified:     out.Report.Delivered,
	}
	if resp.Created == nil {
		resp.Created = []task.Task{}
	}
	if resp.Skipped == nil {
		resp.Skipped = []string{}
	}
	if f := out.Result.Failed; f != nil {
		resp.Failed = &stageFailureView{StageID: f.StageID, Title: f.Title, Error: f.Err.Error()}
	}
	for _, f := range out.Report.Failed {
		resp.NotifyErrors = append(resp.NotifyErrors, f.Error())
	}
	return resp
}

// handleCreateProduction fans an order out into stage tasks. A fan-out that
// stopped part way answers 207 with what was created and where it stopped.
func (s *Server) handleCreateProduction(c *gin.Context) {
	var req productionRequest
	if !s.bind(c, &req) {
		return
	}
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	out, err := ctrl.CreateProduction(c.Request.Context(), board.ProductionForm{
		OrderID:     c.Param("id"),
		Stages:      req.Stages,
		Priority:    task.Priority(req.Priority),
		Deadline:    req.Deadline,
		Description: req.Description,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, productionView(out))
	case errors.Is(err, board.ErrPartialFanOut):
		s.logger.Warn().Err(err).Str("orderId", c.Param("id")).Msg("production fan-out stopped part way")
		c.JSON(http.StatusMultiStatus, productionView(out))
	default:
		s.respondError(c, err)
	}
}
