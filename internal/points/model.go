package points

import "time"

// Ledger action tags recorded on points transactions.
const (
	ActionPeerReviewSubmitted = "peer_review_submitted"
	ActionPeerReviewLiked     = "peer_review_received_like"
)

// Transaction is an immutable ledger row. A user's balance is the sum of their amounts.
type Transaction struct {
	ID          string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID      string    `gorm:"column:user_id;size:64;not null;index:idx_points_user_created,priority:1" json:"user_id"`
	Amount      int       `gorm:"column:amount;not null" json:"amount"`
	Action      string    `gorm:"column:action;size:64;not null" json:"action"`
	Description string    `gorm:"column:description;type:text" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index:idx_points_user_created,priority:2" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Transaction) TableName() string {
	return "points_transactions"
}

// Badge is a named achievement gated by a points threshold.
type Badge struct {
	ID             string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Name           string    `gorm:"column:name;size:190;not null;uniqueIndex" json:"name"`
	Description    string    `gorm:"column:description;type:text" json:"description"`
	ImageURL       string    `gorm:"column:image_url;size:512" json:"image_url"`
	PointsRequired int       `gorm:"column:points_required;not null;default:0" json:"points_required"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Badge) TableName() string {
	return "badges"
}

// UserBadge links a user to an awarded badge.
type UserBadge struct {
	ID        string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID    string    `gorm:"column:user_id;size:64;not null;uniqueIndex:idx_user_badges_user_badge,priority:1" json:"user_id"`
	BadgeID   string    `gorm:"column:badge_id;size:64;not null;uniqueIndex:idx_user_badges_user_badge,priority:2" json:"badge_id"`
	AwardedAt time.Time `gorm:"column:awarded_at;not null" json:"awarded_at"`
}

// TableName provides the explicit table binding for GORM.
func (UserBadge) TableName() string {
	return "user_badges"
}
