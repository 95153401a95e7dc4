package reviews

import "time"

// PeerReview is a colleague's like (or pass) on an employee. One per ordered (reviewer, employee) pair.
type PeerReview struct {
	ID          string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	ReviewerID  string    `gorm:"column:reviewer_id;size:64;not null;uniqueIndex:idx_peer_reviews_pair,priority:1" json:"reviewer_id"`
	EmployeeID  string    `gorm:"column:employee_id;size:64;not null;uniqueIndex:idx_peer_reviews_pair,priority:2;index:idx_peer_reviews_employee_liked,priority:1" json:"employee_id"`
	Liked       bool      `gorm:"column:liked;not null;default:false;index:idx_peer_reviews_employee_liked,priority:2" json:"liked"`
	IsAnonymous bool      `gorm:"column:is_anonymous;not null;default:true" json:"is_anonymous"`
	Comments    *string   `gorm:"column:comments;type:text" json:"comments"`
	CreatedAt   time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (PeerReview) TableName() string {
	return "peer_reviews"
}

// EmployerReview is a scored review written by a manager for a review period.
type EmployerReview struct {
	ID                 string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	EmployeeID         string    `gorm:"column:employee_id;size:64;not null;index" json:"employee_id"`
	ReviewerID         string    `gorm:"column:reviewer_id;size:64;not null" json:"reviewer_id"`
	PerformanceScore   float64   `gorm:"column:performance_score;not null" json:"performance_score"`
	CommunicationScore float64   `gorm:"column:communication_score;not null" json:"communication_score"`
	TeamworkScore      float64   `gorm:"column:teamwork_score;not null" json:"teamwork_score"`
	InnovationScore    float64   `gorm:"column:innovation_score;not null" json:"innovation_score"`
	LeadershipScore    float64   `gorm:"column:leadership_score;not null" json:"leadership_score"`
	TechnicalScore     float64   `gorm:"column:technical_score;not null" json:"technical_score"`
	ReliabilityScore   float64   `gorm:"column:reliability_score;not null" json:"reliability_score"`
	Comments           *string   `gorm:"column:comments;type:text" json:"comments"`
	ReviewPeriod       string    `gorm:"column:review_period;size:64;not null" json:"review_period"`
	CreatedAt          time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (EmployerReview) TableName() string {
	return "employer_reviews"
}

// Scores groups the seven employer review dimensions.
type Scores struct {
	Performance   float64
	Communication float64
	Teamwork      float64
	Innovation    float64
	Leadership    float64
	Technical     float64
	Reliability   float64
}

const (
	minScore = 1
	maxScore = 5
)

func (s Scores) valid() bool {
	for _, score := range []float64{
		s.Performance, s.Communication, s.Teamwork, s.Innovation,
		s.Leadership, s.Technical, s.Reliability,
	} {
		if score < minScore || score > maxScore {
			return false
		}
	}
	return true
}
