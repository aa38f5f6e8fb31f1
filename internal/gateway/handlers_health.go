package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	online, total := 0, 0
	if s.tracker != nil {
		online, total = s.tracker.OnlineNodeCount()
	}
	if s.store != nil {
		if killSwitch, err := s.store.KillSwitch(); err == nil {
			if level, err := s.store.AutonomyLevel(); err == nil {
				s.metrics.SetGuardrailState(killSwitch, level)
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"nodes_online": online,
		"nodes_total":  total,
	})
}
