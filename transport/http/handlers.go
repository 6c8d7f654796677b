package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/twofa/core"
	"github.com/layer-3/twofa/service"
)

const usernameKey = "username"

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// ObtainCodeToken checks username and password and sends a verification code
func (h *AuthHandlers) ObtainCodeToken(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	// malformed requests count against the throttle too
	if err := h.authService.AllowCodeRequest(c.Request.Context(), c.ClientIP()); err != nil {
		writeError(c, err)
		return
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	token, err := h.authService.IssueCodeToken(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// ObtainAuthToken exchanges a code token and its code for session tokens
func (h *AuthHandlers) ObtainAuthToken(c *gin.Context) {
	var req struct {
		CodeToken string `json:"code_token" binding:"required"`
		Code      string `json:"code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	accessToken, refreshToken, err := h.authService.ObtainAuthToken(c.Request.Context(), req.CodeToken, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}

	h.sessionTokens(c, accessToken, refreshToken)
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	accessToken, refreshToken, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}

	h.sessionTokens(c, accessToken, refreshToken)
}

// Verify echoes an access token back if it is still valid
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	if _, err := h.authService.ValidateAccessToken(c.Request.Context(), req.Token); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": req.Token})
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	err := h.authService.Logout(c.Request.Context(), req.RefreshToken)
	if err != nil && !errors.Is(err, core.ErrTokenExpired) {
		// an expired token needs no logout
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	// set by the auth middleware
	username := c.GetString(usernameKey)
	if username == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": username})
}

func (h *AuthHandlers) sessionTokens(c *gin.Context, accessToken, refreshToken string) {
	c.JSON(http.StatusOK, gin.H{
		"token":         accessToken,
		"refresh_token": refreshToken,
		"token_type":    "Bearer",
		"expires_in":    int(h.authService.AccessTTL().Seconds()),
	})
}
