package points

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/ids"
	"github.com/MarcoPoloResearchLab/kudos/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opAppend       = "points.append"
	opLeaderboard  = "points.leaderboard"
	opUserDetail   = "points.user_detail"
	opListBadges   = "points.list_badges"
	opCreateBadge  = "points.create_badge"
	opAwardBadge   = "points.award_badge"
	fieldUserID    = "user_id"
	fieldBadgeID   = "badge_id"
	queryUserID    = "user_id = ?"
	queryActiveID  = "id = ? AND is_active = ?"
	sumAmountQuery = "COALESCE(SUM(amount), 0)"

	// DefaultLeaderboardLimit is used when the caller does not pick a limit.
	DefaultLeaderboardLimit = 10
	// MaxLeaderboardLimit bounds a single leaderboard page.
	MaxLeaderboardLimit = 100
)

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies of the points ledger.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service owns the points ledger and the badge catalog.
type Service struct {
	db         *gorm.DB
	idProvider ids.Provider
	clock      func() time.Time
	logger     *zap.Logger
}

// NewService constructs the ledger service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError("points.service.new", "missing_database", errMissingDatabase)
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, idProvider: idProvider, clock: clock, logger: logger}, nil
}

// Entry describes a ledger row to append.
type Entry struct {
	UserID      string
	Amount      int
	Action      string
	Description string
}

// AppendTx inserts ledger rows using the caller's transaction so they commit or roll back with it.
func (s *Service) AppendTx(transaction *gorm.DB, entries ...Entry) ([]Transaction, error) {
	if transaction == nil {
		return nil, newServiceError(opAppend, "missing_database", errMissingDatabase)
	}
	created := make([]Transaction, 0, len(entries))
	for _, entry := range entries {
		identifier, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opAppend, "id_generation_failed", err, zap.String(fieldUserID, entry.UserID))
			return nil, newServiceError(opAppend, "id_generation_failed", err)
		}
		row := Transaction{
			ID:          identifier,
			UserID:      entry.UserID,
			Amount:      entry.Amount,
			Action:      entry.Action,
			Description: entry.Description,
			CreatedAt:   s.clock().UTC(),
		}
		if err := transaction.Create(&row).Error; err != nil {
			s.logError(opAppend, "insert_failed", err,
				zap.String(fieldUserID, entry.UserID),
				zap.String("action", entry.Action))
			return nil, newServiceError(opAppend, "insert_failed", err)
		}
		created = append(created, row)
	}
	return created, nil
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank   int        `json:"rank"`
	User   users.User `json:"user"`
	Points int        `json:"points"`
}

type userTotalRow struct {
	UserID      string
	TotalPoints int
}

// Leaderboard ranks users by total points; ties are ordered by user id so ranks are stable.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}

	var totals []userTotalRow
	if err := s.db.WithContext(ctx).
		Model(&Transaction{}).
		Select("points_transactions.user_id AS user_id, SUM(points_transactions.amount) AS total_points").
		Joins("JOIN users ON users.id = points_transactions.user_id").
		Group("points_transactions.user_id").
		Order("total_points DESC").
		Order("points_transactions.user_id ASC").
		Limit(limit).
		Scan(&totals).Error; err != nil {
		s.logError(opLeaderboard, "query_failed", err)
		return nil, newServiceError(opLeaderboard, "query_failed", err)
	}
	if len(totals) == 0 {
		return []LeaderboardEntry{}, nil
	}

	userIDs := make([]string, 0, len(totals))
	for _, total := range totals {
		userIDs = append(userIDs, total.UserID)
	}
	var rows []users.User
	if err := s.db.WithContext(ctx).Where("id IN ?", userIDs).Find(&rows).Error; err != nil {
		s.logError(opLeaderboard, "user_query_failed", err)
		return nil, newServiceError(opLeaderboard, "user_query_failed", err)
	}
	byID := make(map[string]users.User, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	entries := make([]LeaderboardEntry, 0, len(totals))
	for index, total := range totals {
		entries = append(entries, LeaderboardEntry{
			Rank:   index + 1,
			User:   byID[total.UserID],
			Points: total.TotalPoints,
		})
	}
	return entries, nil
}

// UserPoints aggregates a user's balance, badges and ledger history.
type UserPoints struct {
	User         users.User    `json:"user"`
	TotalPoints  int           `json:"total_points"`
	Badges       []Badge       `json:"badges"`
	Transactions []Transaction `json:"transactions"`
}

// UserDetail returns the balance, badges and newest-first transactions of a user.
func (s *Service) UserDetail(ctx context.Context, userID string) (UserPoints, error) {
	db := s.db.WithContext(ctx)

	var user users.User
	err := db.Where("id = ?", strings.TrimSpace(userID)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return UserPoints{}, newServiceError(opUserDetail, "user_not_found", ErrUserNotFound)
	}
	if err != nil {
		s.logError(opUserDetail, "user_query_failed", err, zap.String(fieldUserID, userID))
		return UserPoints{}, newServiceError(opUserDetail, "user_query_failed", err)
	}

	total, err := totalFor(db, user.ID)
	if err != nil {
		s.logError(opUserDetail, "total_query_failed", err, zap.String(fieldUserID, user.ID))
		return UserPoints{}, newServiceError(opUserDetail, "total_query_failed", err)
	}

	badges := []Badge{}
	if err := db.Model(&Badge{}).
		Select("badges.*").
		Joins("JOIN user_badges ON user_badges.badge_id = badges.id").
		Where("user_badges.user_id = ?", user.ID).
		Order("user_badges.awarded_at ASC").
		Find(&badges).Error; err != nil {
		s.logError(opUserDetail, "badge_query_failed", err, zap.String(fieldUserID, user.ID))
		return UserPoints{}, newServiceError(opUserDetail, "badge_query_failed", err)
	}

	transactions := []Transaction{}
	if err := db.Where(queryUserID, user.ID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&transactions).Error; err != nil {
		s.logError(opUserDetail, "transaction_query_failed", err, zap.String(fieldUserID, user.ID))
		return UserPoints{}, newServiceError(opUserDetail, "transaction_query_failed", err)
	}

	return UserPoints{User: user, TotalPoints: total, Badges: badges, Transactions: transactions}, nil
}

func totalFor(db *gorm.DB, userID string) (int, error) {
	var total int
	err := db.Model(&Transaction{}).
		Select(sumAmountQuery).
		Where(queryUserID, userID).
		Scan(&total).Error
	return total, err
}

// ListBadges returns the badge catalog ordered by threshold.
func (s *Service) ListBadges(ctx context.Context) ([]Badge, error) {
	badges := []Badge{}
	if err := s.db.WithContext(ctx).Order("points_required ASC, name ASC").Find(&badges).Error; err != nil {
		s.logError(opListBadges, "query_failed", err)
		return nil, newServiceError(opListBadges, "query_failed", err)
	}
	return badges, nil
}

// NewBadge describes a catalog entry to create.
type NewBadge struct {
	Name           string
	Description    string
	ImageURL       string
	PointsRequired int
}

// CreateBadge adds a badge to the catalog.
func (s *Service) CreateBadge(ctx context.Context, input NewBadge) (Badge, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || input.PointsRequired < 0 {
		return Badge{}, newServiceError(opCreateBadge, "invalid_badge", ErrInvalidBadge)
	}
	identifier, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateBadge, "id_generation_failed", err)
		return Badge{}, newServiceError(opCreateBadge, "id_generation_failed", err)
	}
	badge := Badge{
		ID:             identifier,
		Name:           name,
		Description:    strings.TrimSpace(input.Description),
		ImageURL:       strings.TrimSpace(input.ImageURL),
		PointsRequired: input.PointsRequired,
		CreatedAt:      s.clock().UTC(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&badge)
	if result.Error != nil {
		s.logError(opCreateBadge, "insert_failed", result.Error, zap.String("name", name))
		return Badge{}, newServiceError(opCreateBadge, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return Badge{}, newServiceError(opCreateBadge, "name_taken", ErrBadgeNameTaken)
	}
	return badge, nil
}

// AwardBadge links a badge to a user whose balance meets the badge threshold.
func (s *Service) AwardBadge(ctx context.Context, userID, badgeID string) (UserBadge, error) {
	var awarded UserBadge
	err := s.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var user users.User
		err := transaction.Where(queryActiveID, userID, true).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opAwardBadge, "user_not_found", ErrUserNotFound)
		}
		if err != nil {
			return newServiceError(opAwardBadge, "user_query_failed", err)
		}

		var badge Badge
		err = transaction.Where("id = ?", badgeID).Take(&badge).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newServiceError(opAwardBadge, "badge_not_found", ErrBadgeNotFound)
		}
		if err != nil {
			return newServiceError(opAwardBadge, "badge_query_failed", err)
		}

		var existing int64
		if err := transaction.Model(&UserBadge{}).
			Where("user_id = ? AND badge_id = ?", user.ID, badge.ID).
			Count(&existing).Error; err != nil {
			return newServiceError(opAwardBadge, "award_query_failed", err)
		}
		if existing > 0 {
			return newServiceError(opAwardBadge, "already_awarded", ErrBadgeAlreadyAwarded)
		}

		total, err := totalFor(transaction, user.ID)
		if err != nil {
			return newServiceError(opAwardBadge, "total_query_failed", err)
		}
		if total < badge.PointsRequired {
			return newServiceError(opAwardBadge, "insufficient_points", ErrInsufficientPoints)
		}

		identifier, err := s.idProvider.NewID()
		if err != nil {
			return newServiceError(opAwardBadge, "id_generation_failed", err)
		}
		awarded = UserBadge{ID: identifier, UserID: user.ID, BadgeID: badge.ID, AwardedAt: s.clock().UTC()}
		if err := transaction.Create(&awarded).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return newServiceError(opAwardBadge, "already_awarded", ErrBadgeAlreadyAwarded)
			}
			return newServiceError(opAwardBadge, "insert_failed", err)
		}
		return nil
	})
	if err != nil {
		if !isPrecondition(err) {
			s.logError(opAwardBadge, "transaction_failed", err,
				zap.String(fieldUserID, userID),
				zap.String(fieldBadgeID, badgeID))
		}
		return UserBadge{}, err
	}
	s.logger.Info("badge awarded",
		zap.String(fieldUserID, awarded.UserID),
		zap.String(fieldBadgeID, awarded.BadgeID))
	return awarded, nil
}

func isPrecondition(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBadgeNotFound) ||
		errors.Is(err, ErrBadgeAlreadyAwarded) ||
		errors.Is(err, ErrInsufficientPoints)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("points service error", attrs...)
}
