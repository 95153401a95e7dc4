package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/kudos/internal/points"
	"github.com/MarcoPoloResearchLab/kudos/internal/users"
	"github.com/gin-gonic/gin"
)

type badgeRequestPayload struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	ImageURL       string `json:"image_url"`
	PointsRequired int    `json:"points_required"`
}

type awardRequestPayload struct {
	UserID string `json:"user_id"`
}

func (h *httpHandler) handleLeaderboard(c *gin.Context) {
	limit := points.DefaultLeaderboardLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > points.MaxLeaderboardLimit {
			respondInvalidRequest(c, "limit must be an integer between 1 and 100")
			return
		}
		limit = parsed
	}
	leaderboard, err := h.pointsService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		h.respondServiceError(c, "leaderboard_failed", err)
		return
	}
	c.JSON(http.StatusOK, leaderboard)
}

func (h *httpHandler) handleUserPoints(c *gin.Context) {
	detail, err := h.pointsService.UserDetail(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.respondServiceError(c, "user_points_failed", err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *httpHandler) handleListBadges(c *gin.Context) {
	badges, err := h.pointsService.ListBadges(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, "list_badges_failed", err)
		return
	}
	c.JSON(http.StatusOK, badges)
}

func (h *httpHandler) handleCreateBadge(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		h.abortUnauthorized(c, "Could not validate credentials")
		return
	}
	if caller.Role != users.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "detail": "Only administrators can manage badges"})
		return
	}
	var request badgeRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidRequest(c, "name and points_required are required")
		return
	}
	badge, err := h.pointsService.CreateBadge(c.Request.Context(), points.NewBadge{
		Name:           request.Name,
		Description:    request.Description,
		ImageURL:       request.ImageURL,
		PointsRequired: request.PointsRequired,
	})
	if err != nil {
		h.respondServiceError(c, "create_badge_failed", err)
		return
	}
	c.JSON(http.StatusCreated, badge)
}

func (h *httpHandler) handleAwardBadge(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		h.abortUnauthorized(c, "Could not validate credentials")
		return
	}
	if !caller.IsPrivileged() {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "detail": "Only managers and administrators can award badges"})
		return
	}
	var request awardRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.UserID) == "" {
		respondInvalidRequest(c, "user_id is required")
		return
	}
	awarded, err := h.pointsService.AwardBadge(c.Request.Context(), strings.TrimSpace(request.UserID), c.Param("badge_id"))
	if err != nil {
		h.respondServiceError(c, "award_badge_failed", err)
		return
	}
	c.JSON(http.StatusCreated, awarded)
}
