package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/floorboard/internal/access"
)

func (s *Server) handleListRoles(c *gin.Context) {
	roles, err := s.store.ListRoles(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, roles)
}

func (s *Server) handleGetRole(c *gin.Context) {
	rc, err := s.store.RoleConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rc)
}

type putRoleRequest struct {
	Name        string                       `json:"name" validate:"required,max=64"`
	Permissions map[string]access.Permission `json:"permissions"`
}

// handlePutRole replaces a role's permission table. Saving publishes a roles
// change, which drops the cached config on every instance.
func (s *Server) handlePutRole(c *gin.Context) {
	var req putRoleRequest
	if !s.bind(c, &req) {
		return
	}
	rc := &access.RoleConfig{
		ID:          c.Param("id"),
		Name:        req.Name,
		Permissions: make(map[access.ModuleKey]access.Permission, len(req.Permissions)),
	}
	for k, p := range req.Permissions {
		key, err := access.ParseModuleKey(k)
		if err != nil {
			s.respondError(c, err)
			return
		}
		rc.Permissions[key] = p
	}
	if err := rc.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, apiError{Message: err.Error()})
		return
	}
	if err := s.store.PutRole(c.Request.Context(), rc); err != nil {
		s.respondError(c, err)
		return
	}
	s.cache.Invalidate(c.Request.Context(), rc.ID)
	c.JSON(http.StatusOK, rc)
}

func (s *Server) handleDeleteRole(c *gin.Context) {
	id := c.Param("id")
	if id == access.RoleAdmin {
		c.JSON(http.StatusBadRequest, apiError{Message: "the admin role is built in"})
		return
	}
	if err := s.store.DeleteRole(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	s.cache.Invalidate(c.Request.Context(), id)
	c.Status(http.StatusNoContent)
}
