package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/auth"
	"github.com/MarcoPoloResearchLab/kudos/internal/points"
	"github.com/MarcoPoloResearchLab/kudos/internal/reviews"
	"github.com/MarcoPoloResearchLab/kudos/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const currentUserContextKey = "kudos_current_user"

var (
	errMissingIdentityProvider = errors.New("identity provider dependency required")
	errMissingTokenManager     = errors.New("token manager dependency required")
	errMissingUsersService     = errors.New("users service dependency required")
	errMissingReviewsService   = errors.New("reviews service dependency required")
	errMissingPointsService    = errors.New("points service dependency required")
	errMissingRealtimeHandler  = errors.New("realtime handler dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates session tokens.
type TokenManager interface {
	IssueAccessToken(ctx context.Context, subject string, ttl time.Duration) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// RealtimeHandler upgrades a request into a like-count stream.
type RealtimeHandler interface {
	ServeWebSocket(w http.ResponseWriter, r *http.Request, userID string) error
}

// Dependencies wires the HTTP layer to its services.
type Dependencies struct {
	IdentityProvider auth.IdentityProvider
	TokenManager     TokenManager
	UsersService     *users.Service
	ReviewsService   *reviews.Service
	PointsService    *points.Service
	Realtime         RealtimeHandler
	AllowedOrigins   []string
	Logger           *zap.Logger
}

// NewHTTPHandler builds the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.IdentityProvider == nil {
		return nil, errMissingIdentityProvider
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.ReviewsService == nil {
		return nil, errMissingReviewsService
	}
	if deps.PointsService == nil {
		return nil, errMissingPointsService
	}
	if deps.Realtime == nil {
		return nil, errMissingRealtimeHandler
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.Use(requestMetricsMiddleware())

	handler := &httpHandler{
		identity:       deps.IdentityProvider,
		tokens:         deps.TokenManager,
		usersService:   deps.UsersService,
		reviewsService: deps.ReviewsService,
		pointsService:  deps.PointsService,
		realtime:       deps.Realtime,
		logger:         logger,
	}

	router.GET("/", handler.handleRoot)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/refresh", handler.handleRefresh)
	router.GET("/realtime/likes", handler.handleLikesStream)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/auth/user", handler.handleCurrentUser)

	protected.GET("/users", handler.handleListUsers)
	protected.GET("/users/:user_id", handler.handleGetUser)

	protected.POST("/reviews/employer", handler.handleCreateEmployerReview)
	protected.GET("/reviews/employer/:user_id", handler.handleListEmployerReviews)
	protected.POST("/reviews/peer", handler.handleSubmitPeerReview)
	protected.GET("/reviews/peer/me", handler.handleListOwnPeerReviews)

	protected.GET("/points/leaderboard", handler.handleLeaderboard)
	protected.GET("/points/:user_id", handler.handleUserPoints)
	protected.GET("/badges", handler.handleListBadges)
	protected.POST("/badges", handler.handleCreateBadge)
	protected.POST("/badges/:badge_id/award", handler.handleAwardBadge)

	return router, nil
}

type httpHandler struct {
	identity       auth.IdentityProvider
	tokens         TokenManager
	usersService   *users.Service
	reviewsService *reviews.Service
	pointsService  *points.Service
	realtime       RealtimeHandler
	logger         *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || containsWildcard(allowedOrigins) {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "*" {
			return true
		}
	}
	return false
}

func (h *httpHandler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Performance Review API"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		h.abortUnauthorized(c, errInvalidAuthorization.Error())
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		h.abortUnauthorized(c, errInvalidAuthorization.Error())
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		h.abortUnauthorized(c, "Could not validate credentials")
		return
	}

	user, err := h.usersService.FindByEmail(c.Request.Context(), subject)
	if errors.Is(err, users.ErrUserNotFound) {
		h.logger.Warn("token subject has no directory entry", zap.String("subject", subject))
		h.abortUnauthorized(c, "Could not validate credentials")
		return
	}
	if err != nil {
		h.logger.Error("user lookup failed", zap.String("subject", subject), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user_lookup_failed"})
		return
	}
	if !user.IsActive {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "inactive_user", "detail": "Inactive user"})
		return
	}
	c.Set(currentUserContextKey, user)
	c.Next()
}

func (h *httpHandler) abortUnauthorized(c *gin.Context, detail string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "detail": detail})
}

func currentUser(c *gin.Context) (users.User, bool) {
	value, ok := c.Get(currentUserContextKey)
	if !ok {
		return users.User{}, false
	}
	user, ok := value.(users.User)
	return user, ok
}

type errorMapping struct {
	target error
	status int
	reason string
	detail string
}

var errorMappings = []errorMapping{
	{target: reviews.ErrEmployeeNotFound, status: http.StatusNotFound, reason: "employee_not_found", detail: "Employee not found"},
	{target: reviews.ErrSelfReview, status: http.StatusBadRequest, reason: "self_review", detail: "Cannot review yourself"},
	{target: reviews.ErrDuplicateReview, status: http.StatusBadRequest, reason: "duplicate_review", detail: "You have already reviewed this employee"},
	{target: reviews.ErrInvalidScores, status: http.StatusUnprocessableEntity, reason: "invalid_scores", detail: "Scores must be between 1 and 5"},
	{target: reviews.ErrMissingReviewPeriod, status: http.StatusUnprocessableEntity, reason: "missing_review_period", detail: "Review period is required"},
	{target: reviews.ErrForbidden, status: http.StatusForbidden, reason: "forbidden", detail: "Not authorized to view these reviews"},
	{target: users.ErrUserNotFound, status: http.StatusNotFound, reason: "user_not_found", detail: "User not found"},
	{target: points.ErrUserNotFound, status: http.StatusNotFound, reason: "user_not_found", detail: "User not found"},
	{target: points.ErrBadgeNotFound, status: http.StatusNotFound, reason: "badge_not_found", detail: "Badge not found"},
	{target: points.ErrBadgeAlreadyAwarded, status: http.StatusConflict, reason: "badge_already_awarded", detail: "User already holds this badge"},
	{target: points.ErrInsufficientPoints, status: http.StatusBadRequest, reason: "insufficient_points", detail: "Not enough points for this badge"},
	{target: points.ErrBadgeNameTaken, status: http.StatusConflict, reason: "badge_name_taken", detail: "Badge name already exists"},
	{target: points.ErrInvalidBadge, status: http.StatusUnprocessableEntity, reason: "invalid_badge", detail: "Badge name is required and points must not be negative"},
}

// respondServiceError maps domain sentinels to client errors and everything else to a 500.
func (h *httpHandler) respondServiceError(c *gin.Context, reason string, err error) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			c.JSON(mapping.status, gin.H{"error": mapping.reason, "detail": mapping.detail})
			return
		}
	}
	body := gin.H{"error": reason}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		body["code"] = coded.Code()
	}
	h.logger.Error("request failed", zap.String("reason", reason), zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, body)
}

func respondInvalidRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": detail})
}
