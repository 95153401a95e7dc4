package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/reviews"
	"github.com/gin-gonic/gin"
)

type employerReviewRequestPayload struct {
	EmployeeID         string  `json:"employee_id"`
	PerformanceScore   float64 `json:"performance_score"`
	CommunicationScore float64 `json:"communication_score"`
	TeamworkScore      float64 `json:"teamwork_score"`
	InnovationScore    float64 `json:"innovation_score"`
	LeadershipScore    float64 `json:"leadership_score"`
	TechnicalScore     float64 `json:"technical_score"`
	ReliabilityScore   float64 `json:"reliability_score"`
	Comments           *string `json:"comments"`
	ReviewPeriod       string  `json:"review_period"`
}

type peerReviewRequestPayload struct {
	EmployeeID  string  `json:"employee_id"`
	Liked       bool    `json:"liked"`
	IsAnonymous *bool   `json:"is_anonymous"`
	Comments    *string `json:"comments"`
}

type peerReviewResponsePayload struct {
	ID          string    `json:"id"`
	ReviewerID  *string   `json:"reviewer_id"`
	EmployeeID  string    `json:"employee_id"`
	Liked       bool      `json:"liked"`
	IsAnonymous bool      `json:"is_anonymous"`
	Comments    *string   `json:"comments"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newPeerReviewResponse(review reviews.PeerReview) peerReviewResponsePayload {
	response := peerReviewResponsePayload{
		ID:          review.ID,
		EmployeeID:  review.EmployeeID,
		Liked:       review.Liked,
		IsAnonymous: review.IsAnonymous,
		Comments:    review.Comments,
		CreatedAt:   review.CreatedAt,
		UpdatedAt:   review.UpdatedAt,
	}
	if review.ReviewerID != "" {
		reviewerID := review.ReviewerID
		response.ReviewerID = &reviewerID
	}
	return response
}

func (h *httpHandler) handleCreateEmployerReview(c *gin.Context) {
	reviewer, ok := currentUser(c)
	if !ok {
		h.abortUnauthorized(c, "Could not validate credentials")
		return
	}
	var request employerReviewRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.EmployeeID) == "" {
		respondInvalidRequest(c, "employee_id, seven scores and review_period are required")
		return
	}

	review, err := h.reviewsService.CreateEmployerReview(c.Request.Context(), reviewer.ID, reviews.EmployerReviewInput{
		EmployeeID: strings.TrimSpace(request.EmployeeID),
		Scores: reviews.Scores{
			Performance:   request.PerformanceScore,
			Communication: request.CommunicationScore,
			Teamwork:      request.TeamworkScore,
			Innovation:    request.InnovationScore,
			Leadership:    request.LeadershipScore,
			Technical:     request.TechnicalScore,
			Reliability:   request.ReliabilityScore,
		},
		Comments:     request.Comments,
		ReviewPeriod: request.ReviewPeriod,
	})
	if err != nil {
		h.respondServiceError(c, "create_employer_review_failed", err)
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *httpHandler) handleListEmployerReviews(c *gin.Context) {
	viewer, ok := currentUser(c)
	if !ok {
		h.abortUnauthorized(c, "Could not validate credentials")
		return
	}
	employerReviews, err := h.reviewsService.ListEmployerReviews(c.Request.Context(), viewer, c.Param("user_id"))
	if err != nil {
		h.respondServiceError(c, "list_employer_reviews_failed", err)
		return
	}
	c.JSON(http.StatusOK, employerReviews)
}

func (h *httpHandler) handleSubmitPeerReview(c *gin.Context) {
	reviewer, ok := currentUser(c)
	if !ok {
		h.abortUnauthorized(c, "Could not validate credentials")
		return
	}
	var request peerReviewRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.EmployeeID) == "" {
		respondInvalidRequest(c, "employee_id is required")
		return
	}
	anonymous := true
	if request.IsAnonymous != nil {
		anonymous = *request.IsAnonymous
	}

	review, err := h.reviewsService.SubmitPeerReview(c.Request.Context(), reviews.PeerReviewInput{
		ReviewerID:  reviewer.ID,
		EmployeeID:  strings.TrimSpace(request.EmployeeID),
		Liked:       request.Liked,
		IsAnonymous: anonymous,
		Comments:    request.Comments,
	})
	if err != nil {
		h.respondServiceError(c, "submit_peer_review_failed", err)
		return
	}
	c.JSON(http.StatusOK, newPeerReviewResponse(review))
}

func (h *httpHandler) handleListOwnPeerReviews(c *gin.Context) {
	viewer, ok := currentUser(c)
	if !ok {
		h.abortUnauthorized(c, "Could not validate credentials")
		return
	}
	received, err := h.reviewsService.ListPeerReviews(c.Request.Context(), viewer)
	if err != nil {
		h.respondServiceError(c, "list_peer_reviews_failed", err)
		return
	}
	response := make([]peerReviewResponsePayload, 0, len(received))
	for _, review := range received {
		response = append(response, newPeerReviewResponse(review))
	}
	c.JSON(http.StatusOK, response)
}
