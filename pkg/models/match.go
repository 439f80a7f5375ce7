package models

import "time"

// Decision is the disposition the engine assigns to a listing/product pair.
type Decision string

const (
	DecisionAutoApprove   Decision = "auto_approve"
	DecisionPendingReview Decision = "pending_review"
	DecisionReject        Decision = "reject"
)

// MatchDecisionStatus constants. Auto approved decisions skip the review
// queue; pending ones wait for a human verdict.
const (
	MatchDecisionStatusPending      = "pending"
	MatchDecisionStatusAutoApproved = "auto_approved"
	MatchDecisionStatusApproved     = "approved"
	MatchDecisionStatusRejected     = "rejected"
)

// MatchResult is the best candidate found for a listing title, with the
// similarity score that won.
type MatchResult struct {
	CandidateID   string  `json:"candidate_id"`
	CandidateName string  `json:"candidate_name"`
	Score         float64 `json:"score"`
}

// MatchDecision is a persisted reconciliation outcome for a listing.
type MatchDecision struct {
	ID         string     `json:"id" db:"id"`
	ListingID  string     `json:"listing_id" db:"listing_id"`
	ProductID  *string    `json:"product_id,omitempty" db:"product_id"`
	Score      float64    `json:"score" db:"score"`
	Decision   Decision   `json:"decision" db:"decision"`
	Status     string     `json:"status" db:"status"`
	JunkRule   *string    `json:"junk_rule,omitempty" db:"junk_rule"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy *string    `json:"resolved_by,omitempty" db:"resolved_by"`
}

// ResolveMatchDecisionRequest is the request to approve or reject a pending
// decision.
type ResolveMatchDecisionRequest struct {
	Status     string `json:"status" validate:"required,oneof=approved rejected"`
	ResolvedBy string `json:"resolved_by" validate:"required"`
}
