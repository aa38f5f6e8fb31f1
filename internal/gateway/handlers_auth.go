package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homelab/jarvis/internal/auth"
)

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}

	token, err := s.auth.Login(req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidPassword):
			writeError(c, http.StatusUnauthorized, err)
		case errors.Is(err, auth.ErrAuthDisabled):
			writeError(c, http.StatusServiceUnavailable, err)
		default:
			writeError(c, http.StatusInternalServerError, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
