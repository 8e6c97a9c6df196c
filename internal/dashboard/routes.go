package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/floorboard/internal/access"
)

// Register mounts every route on r.
func (s *Server) Register(r gin.IRouter) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.POST("/auth/login", s.handleLogin)

	authed := api.Group("")
	authed.Use(s.Authenticate())
	{
		authed.GET("/me", s.handleMe)
		authed.GET("/events", s.handleSSE)
		authed.GET("/ws", s.handleWebSocket)
	}

	tasks := authed.Group("")
	tasks.Use(RequireModule(access.ModuleTasks, access.View))
	{
		tasks.GET("/board", s.handleBoard)
		tasks.POST("/board/reload", s.handleReload)
		tasks.GET("/tasks/:id", s.handleGetTask)
		tasks.GET("/tasks/:id/docs", s.handleTaskDocs)
		tasks.GET("/tasks/:id/events", s.handleTaskEvents)

		// Edit is checked by the board controller so the response carries
		// the same denial the controller would give.
		tasks.POST("/tasks", s.handleCreateTask)
		tasks.PATCH("/tasks/:id", s.handleEditTask)
		tasks.POST("/tasks/:id/move", s.handleMoveTask)
		tasks.POST("/tasks/:id/archive", s.handleArchiveTask)
		tasks.DELETE("/tasks/:id", s.handleDeleteTask)
	}

	orders := authed.Group("/orders")
	orders.Use(RequireModule(access.ModuleOrders, access.View))
	{
		orders.GET("", s.handleListOrders)
		orders.GET("/:id/production", s.handleProductionDefaults)
		orders.POST("/:id/production", s.handleCreateProduction)
	}

	roles := authed.Group("/roles")
	roles.Use(RequireModule(access.ModuleRoles, access.View))
	{
		roles.GET("", s.handleListRoles)
		roles.GET("/:id", s.handleGetRole)
		roles.PUT("/:id", RequireModule(access.ModuleRoles, access.Edit), s.handlePutRole)
		roles.DELETE("/:id", RequireModule(access.ModuleRoles, access.Edit), s.handleDeleteRole)
	}

	notifications := authed.Group("/notifications")
	notifications.Use(RequireModule(access.ModuleNotifications, access.View))
	{
		notifications.GET("", s.handleNotifications)
		notifications.POST("/:id/read", s.handleMarkRead)
	}
}
