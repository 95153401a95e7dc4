package reviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/kudos/internal/points"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PeerReviewInput describes a peer review submission.
type PeerReviewInput struct {
	ReviewerID  string
	EmployeeID  string
	Liked       bool
	IsAnonymous bool
	Comments    *string
}

// SubmitPeerReview records a peer review and its ledger credits in one transaction.
//
// Preconditions are checked in order: the employee must be an active user, the reviewer
// must not be the employee, and the pair must not have been reviewed before. On commit the
// reviewer is credited and, for a like, so is the employee; the like event is then handed
// to the notifier without waiting for delivery.
func (s *Service) SubmitPeerReview(ctx context.Context, input PeerReviewInput) (PeerReview, error) {
	var review PeerReview
	transactionError := s.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := s.requireActiveUser(transaction, opSubmitPeer, input.EmployeeID); err != nil {
			return err
		}
		if input.ReviewerID == input.EmployeeID {
			return newServiceError(opSubmitPeer, "self_review", ErrSelfReview)
		}

		var existing int64
		if err := transaction.Model(&PeerReview{}).
			Where("reviewer_id = ? AND employee_id = ?", input.ReviewerID, input.EmployeeID).
			Count(&existing).Error; err != nil {
			s.logError(opSubmitPeer, "duplicate_lookup_failed", err, reviewFields(input)...)
			return newServiceError(opSubmitPeer, "duplicate_lookup_failed", err)
		}
		if existing > 0 {
			return newServiceError(opSubmitPeer, "duplicate_review", ErrDuplicateReview)
		}

		identifier, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opSubmitPeer, "id_generation_failed", err, reviewFields(input)...)
			return newServiceError(opSubmitPeer, "id_generation_failed", err)
		}
		now := s.clock().UTC()
		review = PeerReview{
			ID:          identifier,
			ReviewerID:  input.ReviewerID,
			EmployeeID:  input.EmployeeID,
			Liked:       input.Liked,
			IsAnonymous: input.IsAnonymous,
			Comments:    normalizeComments(input.Comments),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := transaction.Create(&review).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return newServiceError(opSubmitPeer, "duplicate_review", ErrDuplicateReview)
			}
			s.logError(opSubmitPeer, "review_insert_failed", err, reviewFields(input)...)
			return newServiceError(opSubmitPeer, "review_insert_failed", err)
		}

		entries := []points.Entry{{
			UserID:      input.ReviewerID,
			Amount:      s.rewards.ReviewSubmitted,
			Action:      points.ActionPeerReviewSubmitted,
			Description: fmt.Sprintf("Submitted peer review for employee %s", input.EmployeeID),
		}}
		if input.Liked {
			entries = append(entries, points.Entry{
				UserID:      input.EmployeeID,
				Amount:      s.rewards.LikeReceived,
				Action:      points.ActionPeerReviewLiked,
				Description: "Received a like in peer review",
			})
		}
		if _, err := s.ledger.AppendTx(transaction, entries...); err != nil {
			s.logError(opSubmitPeer, "ledger_append_failed", err, reviewFields(input)...)
			return newServiceError(opSubmitPeer, "ledger_append_failed", err)
		}
		return nil
	})
	if transactionError != nil {
		var serviceErr *ServiceError
		if !errors.As(transactionError, &serviceErr) {
			s.logError(opSubmitPeer, "commit_failed", transactionError, reviewFields(input)...)
			transactionError = newServiceError(opSubmitPeer, "commit_failed", transactionError)
		}
		return PeerReview{}, transactionError
	}

	s.logger.Info("peer review submitted",
		zap.String("review_id", review.ID),
		zap.String(fieldReviewerID, review.ReviewerID),
		zap.String(fieldEmployeeID, review.EmployeeID),
		zap.Bool("liked", review.Liked))

	if s.notifier != nil {
		s.notifier.NotifyLike(review.EmployeeID, review.Liked)
	}
	return review, nil
}

func reviewFields(input PeerReviewInput) []zap.Field {
	return []zap.Field{
		zap.String(fieldReviewerID, input.ReviewerID),
		zap.String(fieldEmployeeID, input.EmployeeID),
	}
}
