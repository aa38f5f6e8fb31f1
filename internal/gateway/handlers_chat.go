package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homelab/jarvis/internal/dispatch"
)

type chatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.runChatTurn(c.Request.Context(), cleanSessionID(req.SessionID), dispatch.CallerChat, req.Message)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type chatConfirmRequest struct {
	PendingID string `json:"pending_id" binding:"required"`
	Keyword   string `json:"keyword" binding:"required"`
}

func (s *Server) handleChatConfirm(c *gin.Context) {
	var req chatConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	result, err := s.resumeChatTurn(c.Request.Context(), req.PendingID, req.Keyword)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
