package server

import (
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/kudos/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// handleLikesStream upgrades to the like-count stream. The user may be named with
// user_id or, when an access_token is supplied, taken from the token's directory entry.
func (h *httpHandler) handleLikesStream(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if token := strings.TrimSpace(c.Query("access_token")); token != "" {
		subject, err := h.tokens.ValidateToken(token)
		if err != nil {
			h.logger.Info("realtime token rejected", zap.Error(err))
			h.abortUnauthorized(c, "Could not validate credentials")
			return
		}
		user, err := h.usersService.FindByEmail(c.Request.Context(), subject)
		if err != nil || !user.IsActive {
			if err != nil && !errors.Is(err, users.ErrUserNotFound) {
				h.logger.Error("realtime user lookup failed", zap.String("subject", subject), zap.Error(err))
			}
			h.abortUnauthorized(c, "Could not validate credentials")
			return
		}
		userID = user.ID
	}

	if err := h.realtime.ServeWebSocket(c.Writer, c.Request, userID); err != nil {
		c.Abort()
	}
}
