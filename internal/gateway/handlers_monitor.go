package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homelab/jarvis/pkg/models"
)

var errInvalidAutonomyLevel = errors.New("autonomy level must be between 0 and 4")

func (s *Server) handleMonitorStatus(c *gin.Context) {
	ctx := c.Request.Context()

	killSwitch, err := s.store.KillSwitch()
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	level, err := s.store.AutonomyLevel()
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}

	online, total := 0, 0
	if s.tracker != nil {
		online, total = s.tracker.OnlineNodeCount()
	}

	unresolved, err := s.store.ListUnresolvedEvents(ctx, 50)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kill_switch":        killSwitch,
		"autonomy_level":     level,
		"nodes_online":       online,
		"nodes_total":        total,
		"unresolved_events":  unresolved,
		"monitor_running":    s.monitor != nil,
	})
}

func (s *Server) handleMonitorActions(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	actions, err := s.store.ListAutonomyActions(c.Request.Context(), limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

// handleTestAlert pushes a synthetic event through the hub so an operator
// can confirm the /ws/events pipe and any downstream notification channel
// are wired correctly, without waiting for a real incident.
func (s *Server) handleTestAlert(c *gin.Context) {
	event := models.Event{
		ID:        uuid.NewString(),
		Type:      "test_alert",
		Severity:  models.SeverityInfo,
		Title:     "Test alert",
		Message:   "This is a test alert triggered from the API.",
		Source:    models.SourceUser,
		Timestamp: time.Now(),
	}
	s.hub.Publish(c.Request.Context(), event)
	c.JSON(http.StatusOK, gin.H{"published": event})
}
