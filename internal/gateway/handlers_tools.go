package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homelab/jarvis/internal/dispatch"
)

func (s *Server) handleListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": s.registry.ListTools()})
}

type executeToolRequest struct {
	Name string         `json:"name" binding:"required"`
	Args map[string]any `json:"args"`
}

func (s *Server) handleExecuteTool(c *gin.Context) {
	var req executeToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	result := s.registry.ExecuteTool(c.Request.Context(), req.Name, req.Args, dispatch.CallerAPI)
	status := http.StatusOK
	if result.Blocked {
		status = http.StatusForbidden
	} else if result.IsError {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}
