package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of event
type EventType string

const (
	// Listing reconciliation events
	EventTypeListingAutoApproved  EventType = "listing.auto_approved"
	EventTypeListingPendingReview EventType = "listing.pending_review"
	EventTypeListingRejected      EventType = "listing.rejected"
	EventTypeListingJunk          EventType = "listing.junk"

	// Variant events
	EventTypeVariantFlagsApplied EventType = "variant.flags_applied"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType     EventType `json:"event_type"`
	SchemaVersion string    `json:"schema_version"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// ListingDecisionEvent is emitted once per scored listing
type ListingDecisionEvent struct {
	BaseEvent
	ListingID     string  `json:"listing_id"`
	ProductID     string  `json:"product_id,omitempty"`
	CandidateName string  `json:"candidate_name,omitempty"`
	Score         float64 `json:"score"`
	Decision      string  `json:"decision"`
}

// ListingJunkEvent is emitted when the quality gate rejects a listing
type ListingJunkEvent struct {
	BaseEvent
	ListingID    string `json:"listing_id"`
	RuleName     string `json:"rule_name"`
	RuleCategory string `json:"rule_category"`
}

// VariantFlagsAppliedEvent is emitted after a best-variant resolution pass
type VariantFlagsAppliedEvent struct {
	BaseEvent
	MarkedBest    []string `json:"marked_best"`
	MarkedNotBest []string `json:"marked_not_best"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		EventType:     eventType,
		SchemaVersion: SchemaVersion,
		Timestamp:     time.Now().UTC(),
		CorrelationID: uuid.New().String(),
	}
}
