package dashboard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/floorboard/internal/board"
	"github.com/zulandar/floorboard/internal/production"
	"github.com/zulandar/floorboard/internal/store"
	"github.com/zulandar/floorboard/internal/task"
)

const docsTimeout = 15 * time.Second

type boardResponse struct {
	Loading  bool                     `json:"loading"`
	Columns  task.Board               `json:"columns"`
	Progress map[string]task.Progress `json:"progress"`
	Stale    []string                 `json:"stale"`
	Pending  []string                 `json:"pending"`
	Users    []store.User             `json:"users"`
	Orders   []production.Order       `json:"orders"`
}

func (s *Server) controller(c *gin.Context) (*board.Controller, bool) {
	ctrl, err := s.sessions.get(c.Request.Context(), actorFrom(c))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return ctrl, true
}

func (s *Server) handleBoard(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, boardView(ctrl))
}

func boardView(ctrl *board.Controller) boardResponse {
	tasks := ctrl.Tasks()
	resp := boardResponse{
		Loading:  ctrl.Loading(),
		Columns:  task.Partition(tasks),
		Progress: make(map[string]task.Progress),
		Stale:    []string{},
		Pending:  []string{},
		Users:    ctrl.Users(),
		Orders:   ctrl.Orders(),
	}
	for _, t := range tasks {
		if t.IsProduction() {
			resp.Progress[t.ID] = task.ProgressOf(t)
		}
		if ctrl.Stale(t.ID) {
			resp.Stale = append(resp.Stale, t.ID)
		}
		if ctrl.Pending(t.ID) {
			resp.Pending = append(resp.Pending, t.ID)
		}
	}
	return resp
}

func (s *Server) handleReload(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	if err := ctrl.Reload(c.Request.Context()); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, boardView(ctrl))
}

func (s *Server) handleGetTask(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	t, found := ctrl.Task(c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, apiError{Message: "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": t, "progress": task.ProgressOf(t)})
}

// handleTaskDocs resolves the setup map and drawing for a task. Resolution
// problems come back as an empty result, never as an error.
func (s *Server) handleTaskDocs(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), docsTimeout)
	defer cancel()
	ch, err := ctrl.Open(ctx, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	select {
	case res, open := <-ch:
		if !open {
			// Superseded by another open from the same actor.
			c.JSON(http.StatusConflict, apiError{Message: "superseded by another task"})
			return
		}
		c.JSON(http.StatusOK, res)
	case <-ctx.Done():
		c.JSON(http.StatusGatewayTimeout, apiError{Message: "documentation lookup timed out"})
	}
}

type eventView struct {
	Action     string    `json:"action"`
	ActorID    string    `json:"actorId"`
	FromStatus string    `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	At         time.Time `json:"at"`
}

func (s *Server) handleTaskEvents(c *gin.Context) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, found := ctrl.Task(id); !found {
		c.JSON(http.StatusNotFound, apiError{Message: "task not found"})
		return
	}
	events, err := s.store.TaskEvents(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, eventView{
			Action:     ev.Action,
			ActorID:    ev.ActorID,
			FromStatus: ev.FromStatus,
			ToStatus:   ev.ToStatus,
			Quantity:   ev.Quantity,
			At:         ev.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

type createTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=255"`
	Description string     `json:"description"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high"`
	Deadline    *time.Time `json:"deadline"`
	AssigneeIDs []string   `json:"assigneeIds" validate:"dive,required"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if !s.bind(c, &req) {
		return
	}
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	t, err := ctrl.Create(c.Request.Context(), board.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Priority:    task.Priority(req.Priority),
		Deadline:    req.Deadline,
		AssigneeIDs: req.AssigneeIDs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type editTaskRequest struct {
	Title         *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Description   *string    `json:"description"`
	Priority      *string    `json:"priority" validate:"omitempty,oneof=low medium high"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clearDeadline"`
	AssigneeIDs   *[]string  `json:"assigneeIds"`
}

func (r editTaskRequest) edit() store.TaskEdit {
	e := store.TaskEdit{
		Title:         r.Title,
		Description:   r.Description,
		Deadline:      r.Deadline,
		ClearDeadline: r.ClearDeadline,
		AssigneeIDs:   r.AssigneeIDs,
	}
	if r.Priority != nil {
		p := task.Priority(*r.Priority)
		e.Priority = &p
	}
	return e
}

func (s *Server) handleEditTask(c *gin.Context) {
	var req editTaskRequest
	if !s.bind(c, &req) {
		return
	}
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	t, err := ctrl.Edit(c.Request.Context(), c.Param("id"), req.edit())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type moveTaskRequest struct {
	Status string `json:"status" validate:"required,oneof=todo in_progress done"`
}

func (s *Server) handleMoveTask(c *gin.Context) {
	var req moveTaskRequest
	if !s.bind(c, &req) {
		return
	}
	to, err := task.ParseStatus(req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.mutateTask(c, func(ctx context.Context, ctrl *board.Controller, id string) error {
		return ctrl.Move(ctx, id, to)
	})
}

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

func (s *Server) handleArchiveTask(c *gin.Context) {
	var req confirmRequest
	if !s.bind(c, &req) {
		return
	}
	s.mutateTask(c, func(ctx context.Context, ctrl *board.Controller, id string) error {
		return ctrl.Archive(ctx, id, req.Confirm)
	})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	confirm, _ := strconv.ParseBool(c.Query("confirm"))
	s.mutateTask(c, func(ctx context.Context, ctrl *board.Controller, id string) error {
		return ctrl.Delete(ctx, id, confirm)
	})
}

// mutateTask runs an optimistic board action and answers with the board's
// view of the task afterwards.
func (s *Server) mutateTask(c *gin.Context, fn func(context.Context, *board.Controller, string) error) {
	ctrl, ok := s.controller(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := fn(c.Request.Context(), ctrl, id); err != nil {
		s.respondError(c, err)
		return
	}
	if t, found := ctrl.Task(id); found {
		c.JSON(http.StatusOK, t)
		return
	}
	c.Status(http.StatusNoContent)
}
