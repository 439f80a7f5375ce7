// Package events handles event emission for reconciliation outcomes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/AudioList/clover/pkg/kafka"
	"github.com/AudioList/clover/pkg/models"
	"github.com/AudioList/clover/pkg/tracing"
	"github.com/AudioList/clover/pkg/variants"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Publisher is the producer surface the emitter needs. Satisfied by
// kafka.Producer; tests substitute an in-memory recorder.
type Publisher interface {
	PublishListingEvent(ctx context.Context, event *kafka.ListingEvent) error
	PublishListingEvents(ctx context.Context, events []*kafka.ListingEvent) error
}

// ListingDecision pairs a listing with its scored outcome for emission.
type ListingDecision struct {
	ListingID string
	Decision  models.Decision
	Result    *models.MatchResult
}

// Emitter translates engine outcomes into versioned events
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func decisionEventType(decision models.Decision) EventType {
	switch decision {
	case models.DecisionAutoApprove:
		return EventTypeListingAutoApproved
	case models.DecisionPendingReview:
		return EventTypeListingPendingReview
	default:
		return EventTypeListingRejected
	}
}

// EmitListingDecisions emits the outcomes of one scored batch of listings in
// a single produce call.
func (e *Emitter) EmitListingDecisions(ctx context.Context, decisions []ListingDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitListingDecisions")
	defer span.End()

	batch := make([]*kafka.ListingEvent, 0, len(decisions))
	for _, d := range decisions {
		payload := ListingDecisionEvent{
			BaseEvent: NewBaseEvent(decisionEventType(d.Decision)),
			ListingID: d.ListingID,
			Decision:  string(d.Decision),
		}
		if d.Result != nil {
			payload.ProductID = d.Result.CandidateID
			payload.CandidateName = d.Result.CandidateName
			payload.Score = d.Result.Score
		}

		data, _ := json.Marshal(payload)
		batch = append(batch, &kafka.ListingEvent{
			EventType: string(payload.EventType),
			ListingID: d.ListingID,
			ProductID: payload.ProductID,
			Score:     payload.Score,
			Data:      data,
		})
	}

	if err := e.producer.PublishListingEvents(ctx, batch); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(batch),
		}).Error("Failed to emit listing decision events")
		return err
	}

	return nil
}

// EmitListingJunk emits an event when the quality gate rejects a listing
func (e *Emitter) EmitListingJunk(ctx context.Context, listingID string, ruleName string, ruleCategory string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitListingJunk")
	defer span.End()

	payload := ListingJunkEvent{
		BaseEvent:    NewBaseEvent(EventTypeListingJunk),
		ListingID:    listingID,
		RuleName:     ruleName,
		RuleCategory: ruleCategory,
	}

	data, _ := json.Marshal(payload)
	event := &kafka.ListingEvent{
		EventType: string(EventTypeListingJunk),
		ListingID: listingID,
		Data:      data,
	}

	if err := e.producer.PublishListingEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"listing_id": listingID,
			"rule":       ruleName,
		}).Error("Failed to emit listing junk event")
		return err
	}

	return nil
}

// EmitVariantFlagsApplied emits the diff of a best-variant resolution pass.
// Empty diffs are not emitted.
func (e *Emitter) EmitVariantFlagsApplied(ctx context.Context, diff variants.Diff) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitVariantFlagsApplied")
	defer span.End()

	if diff.Empty() {
		return nil
	}

	payload := VariantFlagsAppliedEvent{
		BaseEvent:     NewBaseEvent(EventTypeVariantFlagsApplied),
		MarkedBest:    diff.ToMarkBest,
		MarkedNotBest: diff.ToMarkNotBest,
	}

	data, _ := json.Marshal(payload)
	event := &kafka.ListingEvent{
		EventType: string(EventTypeVariantFlagsApplied),
		ListingID: payload.CorrelationID,
		Data:      data,
	}

	if err := e.producer.PublishListingEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit variant flags event")
		return err
	}

	return nil
}
