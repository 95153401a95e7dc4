package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const tokenTypeBearer = "bearer"

type loginRequestPayload struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

type refreshRequestPayload struct {
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

type tokenResponsePayload struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBind(&request); err != nil || strings.TrimSpace(request.Username) == "" || request.Password == "" {
		respondInvalidRequest(c, "username and password are required")
		return
	}
	username := strings.TrimSpace(request.Username)

	tokens, err := h.identity.Authenticate(c.Request.Context(), username, request.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.logger.Info("login rejected", zap.String("username", username))
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "detail": "Incorrect username or password"})
		return
	}
	if err != nil {
		h.logger.Error("identity provider login failed", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity_provider_failed"})
		return
	}

	h.respondWithSession(c, username, tokens, true)
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	refreshToken := strings.TrimSpace(c.Query("refresh_token"))
	if refreshToken == "" {
		var request refreshRequestPayload
		if err := c.ShouldBind(&request); err == nil {
			refreshToken = strings.TrimSpace(request.RefreshToken)
		}
	}
	if refreshToken == "" {
		respondInvalidRequest(c, "refresh_token is required")
		return
	}

	tokens, err := h.identity.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.logger.Info("token refresh rejected", zap.Error(err))
		h.abortInvalidRefresh(c)
		return
	}
	subject, err := auth.IdentityFromIDToken(tokens.IDToken)
	if err != nil {
		h.logger.Warn("refreshed id token carries no identity", zap.Error(err))
		h.abortInvalidRefresh(c)
		return
	}

	h.respondWithSession(c, subject, tokens, false)
}

func (h *httpHandler) abortInvalidRefresh(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_refresh_token", "detail": "Invalid refresh token"})
}

func (h *httpHandler) respondWithSession(c *gin.Context, subject string, tokens auth.TokenSet, includeRefresh bool) {
	ttl := time.Duration(tokens.ExpiresIn) * time.Second
	accessToken, expiresIn, err := h.tokens.IssueAccessToken(c.Request.Context(), subject, ttl)
	if err != nil {
		h.logger.Error("failed to issue access token", zap.String("subject", subject), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}
	response := tokenResponsePayload{
		AccessToken: accessToken,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   expiresIn,
		IDToken:     tokens.IDToken,
	}
	if includeRefresh {
		response.RefreshToken = tokens.RefreshToken
	}
	c.JSON(http.StatusOK, response)
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		h.abortUnauthorized(c, "Could not validate credentials")
		return
	}
	c.JSON(http.StatusOK, user)
}
