package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListEvents(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	events, err := s.store.ListEvents(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleListUnresolvedEvents(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	events, err := s.store.ListUnresolvedEvents(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleResolveEvent(c *gin.Context) {
	id := c.Param("id")
	if err := s.store.ResolveEvent(c.Request.Context(), id); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetKillSwitch(c *gin.Context) {
	on, err := s.store.KillSwitch()
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kill_switch": on})
}

type killSwitchRequest struct {
	On bool `json:"on"`
}

func (s *Server) handleSetKillSwitch(c *gin.Context) {
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.store.SetKillSwitch(c.Request.Context(), req.On); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kill_switch": req.On})
}

func (s *Server) handleGetAutonomyLevel(c *gin.Context) {
	level, err := s.store.AutonomyLevel()
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"autonomy_level": level})
}

type autonomyLevelRequest struct {
	Level int `json:"level"`
}

func (s *Server) handleSetAutonomyLevel(c *gin.Context) {
	var req autonomyLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if req.Level < 0 || req.Level > 4 {
		writeError(c, http.StatusBadRequest, errInvalidAutonomyLevel)
		return
	}
	if err := s.store.SetAutonomyLevel(c.Request.Context(), req.Level); err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"autonomy_level": req.Level})
}

func queryInt(c *gin.Context, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
