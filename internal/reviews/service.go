package reviews

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/ids"
	"github.com/MarcoPoloResearchLab/kudos/internal/points"
	"github.com/MarcoPoloResearchLab/kudos/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew          = "reviews.service.new"
	opCreateEmployer      = "reviews.create_employer_review"
	opListEmployer        = "reviews.list_employer_reviews"
	opSubmitPeer          = "reviews.submit_peer_review"
	opListPeer            = "reviews.list_peer_reviews"
	fieldReviewerID       = "reviewer_id"
	fieldEmployeeID       = "employee_id"
	queryActiveUser       = "id = ? AND is_active = ?"
	queryEmployeeID       = "employee_id = ?"
	reasonMissingDatabase = "missing_database"
	reasonQueryFailed     = "query_failed"
)

var noOpLogger = zap.NewNop()

// Rewards are the ledger amounts credited by a peer review submission.
type Rewards struct {
	ReviewSubmitted int
	LikeReceived    int
}

// DefaultRewards returns the reference amounts: +10 to the reviewer, +5 to a liked employee.
func DefaultRewards() Rewards {
	return Rewards{ReviewSubmitted: 10, LikeReceived: 5}
}

// LedgerWriter appends points rows inside a caller-owned transaction.
type LedgerWriter interface {
	AppendTx(transaction *gorm.DB, entries ...points.Entry) ([]points.Transaction, error)
}

// LikeNotifier receives like events after a peer review commits. Implementations must not block.
type LikeNotifier interface {
	NotifyLike(employeeID string, liked bool)
}

// ServiceConfig describes the dependencies of the review service.
type ServiceConfig struct {
	Database   *gorm.DB
	Ledger     LedgerWriter
	Notifier   LikeNotifier
	IDProvider ids.Provider
	Clock      func() time.Time
	Logger     *zap.Logger
	// Rewards overrides the ledger amounts; the zero value selects DefaultRewards.
	Rewards Rewards
}

// Service manages employer reviews and peer reviews.
type Service struct {
	db         *gorm.DB
	ledger     LedgerWriter
	notifier   LikeNotifier
	idProvider ids.Provider
	clock      func() time.Time
	logger     *zap.Logger
	rewards    Rewards
}

// NewService constructs the review service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.Ledger == nil {
		return nil, newServiceError(opServiceNew, "missing_ledger", errors.New("ledger writer is required"))
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
	rewards := cfg.Rewards
	if rewards == (Rewards{}) {
		rewards = DefaultRewards()
	}
	return &Service{
		db:         cfg.Database,
		ledger:     cfg.Ledger,
		notifier:   cfg.Notifier,
		idProvider: idProvider,
		clock:      clock,
		logger:     logger,
		rewards:    rewards,
	}, nil
}

// EmployerReviewInput describes a new employer review.
type EmployerReviewInput struct {
	EmployeeID   string
	Scores       Scores
	Comments     *string
	ReviewPeriod string
}

// CreateEmployerReview stores a scored review of an existing employee.
func (s *Service) CreateEmployerReview(ctx context.Context, reviewerID string, input EmployerReviewInput) (EmployerReview, error) {
	if !input.Scores.valid() {
		return EmployerReview{}, newServiceError(opCreateEmployer, "invalid_scores", ErrInvalidScores)
	}
	period := strings.TrimSpace(input.ReviewPeriod)
	if period == "" {
		return EmployerReview{}, newServiceError(opCreateEmployer, "missing_review_period", ErrMissingReviewPeriod)
	}

	db := s.db.WithContext(ctx)
	if err := s.requireActiveUser(db, opCreateEmployer, input.EmployeeID); err != nil {
		return EmployerReview{}, err
	}

	identifier, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateEmployer, "id_generation_failed", err)
		return EmployerReview{}, newServiceError(opCreateEmployer, "id_generation_failed", err)
	}
	now := s.clock().UTC()
	review := EmployerReview{
		ID:                 identifier,
		EmployeeID:         input.EmployeeID,
		ReviewerID:         reviewerID,
		PerformanceScore:   input.Scores.Performance,
		CommunicationScore: input.Scores.Communication,
		TeamworkScore:      input.Scores.Teamwork,
		InnovationScore:    input.Scores.Innovation,
		LeadershipScore:    input.Scores.Leadership,
		TechnicalScore:     input.Scores.Technical,
		ReliabilityScore:   input.Scores.Reliability,
		Comments:           normalizeComments(input.Comments),
		ReviewPeriod:       period,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := db.Create(&review).Error; err != nil {
		s.logError(opCreateEmployer, "insert_failed", err,
			zap.String(fieldReviewerID, reviewerID),
			zap.String(fieldEmployeeID, input.EmployeeID))
		return EmployerReview{}, newServiceError(opCreateEmployer, "insert_failed", err)
	}
	return review, nil
}

// ListEmployerReviews returns an employee's employer reviews; only the employee or a manager/admin may read them.
func (s *Service) ListEmployerReviews(ctx context.Context, viewer users.User, employeeID string) ([]EmployerReview, error) {
	db := s.db.WithContext(ctx)
	var employee users.User
	err := db.Where("id = ?", employeeID).Take(&employee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, newServiceError(opListEmployer, "employee_not_found", ErrEmployeeNotFound)
	}
	if err != nil {
		s.logError(opListEmployer, reasonQueryFailed, err, zap.String(fieldEmployeeID, employeeID))
		return nil, newServiceError(opListEmployer, reasonQueryFailed, err)
	}
	if viewer.ID != employee.ID && !viewer.IsPrivileged() {
		return nil, newServiceError(opListEmployer, "forbidden", ErrForbidden)
	}

	reviews := []EmployerReview{}
	if err := db.Where(queryEmployeeID, employee.ID).Order("created_at DESC").Find(&reviews).Error; err != nil {
		s.logError(opListEmployer, reasonQueryFailed, err, zap.String(fieldEmployeeID, employeeID))
		return nil, newServiceError(opListEmployer, reasonQueryFailed, err)
	}
	return reviews, nil
}

// ListPeerReviews returns the peer reviews received by the viewer. Reviewer identities of
// anonymous reviews are cleared unless the viewer is a manager or admin.
func (s *Service) ListPeerReviews(ctx context.Context, viewer users.User) ([]PeerReview, error) {
	reviews := []PeerReview{}
	if err := s.db.WithContext(ctx).
		Where(queryEmployeeID, viewer.ID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		s.logError(opListPeer, reasonQueryFailed, err, zap.String(fieldEmployeeID, viewer.ID))
		return nil, newServiceError(opListPeer, reasonQueryFailed, err)
	}
	if viewer.IsPrivileged() {
		return reviews, nil
	}
	for index := range reviews {
		if reviews[index].IsAnonymous {
			reviews[index].ReviewerID = ""
		}
	}
	return reviews, nil
}

func (s *Service) requireActiveUser(db *gorm.DB, operation, userID string) error {
	var count int64
	if err := db.Model(&users.User{}).Where(queryActiveUser, userID, true).Count(&count).Error; err != nil {
		s.logError(operation, "employee_lookup_failed", err, zap.String(fieldEmployeeID, userID))
		return newServiceError(operation, "employee_lookup_failed", err)
	}
	if count == 0 {
		return newServiceError(operation, "employee_not_found", ErrEmployeeNotFound)
	}
	return nil
}

func normalizeComments(comments *string) *string {
	if comments == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comments)
	if trimmed == "" {
		return nil
	}
	return &trimmed
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
	s.logger.Error("reviews service error", attrs...)
}
