package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/guardline/aegis/internal/auth"
	authdomain "github.com/guardline/aegis/internal/auth/domain"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "email and password are required"))
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":           result.User.ID.String(),
			"email":        result.User.Email,
			"display_name": result.User.DisplayName,
		},
		"expires_at": result.ExpiresAt,
	})
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		// A stale cookie is not an error; the cookie gets cleared anyway.
		_ = s.authsvc.Logout(c.Request.Context(), token)
	}
	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Me(c *gin.Context) {
	userID, ok := c.Get(auth.ContextUserIDKey)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID.(snowflake.ID).String()})
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *Server) ChangePassword(c *gin.Context) {
	userID, ok := c.Get(auth.ContextUserIDKey)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("new_password", "required", "new password is required"))
		return
	}

	if err := s.authsvc.ChangePassword(c.Request.Context(), userID.(snowflake.ID), req.NewPassword); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
