package reviews

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

const opLikeCounts = "reviews.like_counts"

// LikeAggregator counts liked peer reviews per active user.
type LikeAggregator struct {
	db *gorm.DB
}

// NewLikeAggregator constructs an aggregator over the review store.
func NewLikeAggregator(db *gorm.DB) (*LikeAggregator, error) {
	if db == nil {
		return nil, newServiceError("reviews.like_aggregator.new", reasonMissingDatabase, errMissingDatabase)
	}
	return &LikeAggregator{db: db}, nil
}

type likeCountRow struct {
	UserID string
	Likes  int
}

// LikeCounts returns liked-review counts keyed by user id. Every active user is present,
// zero counts included. The result is read fresh on each call and is never nil.
func (a *LikeAggregator) LikeCounts(ctx context.Context) (map[string]int, error) {
	if a == nil || a.db == nil {
		return nil, newServiceError(opLikeCounts, reasonMissingDatabase, errors.New("aggregator is not configured"))
	}
	var rows []likeCountRow
	if err := a.db.WithContext(ctx).
		Table("users").
		Select("users.id AS user_id, COUNT(peer_reviews.id) AS likes").
		Joins("LEFT JOIN peer_reviews ON peer_reviews.employee_id = users.id AND peer_reviews.liked = ?", true).
		Where("users.is_active = ?", true).
		Group("users.id").
		Scan(&rows).Error; err != nil {
		return nil, newServiceError(opLikeCounts, reasonQueryFailed, err)
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.UserID] = row.Likes
	}
	return counts, nil
}
