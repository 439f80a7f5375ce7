package matchdecision

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/AudioList/clover/pkg/database"
	"github.com/AudioList/clover/pkg/models"
	"github.com/AudioList/clover/pkg/tracing"
)

// Repository handles match decision persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match decision repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const decisionColumns = "id, listing_id, product_id, score, decision, status, junk_rule, created_at, updated_at, resolved_at, resolved_by"

// statusFor maps an engine decision to the initial review status.
func statusFor(decision models.Decision) string {
	switch decision {
	case models.DecisionAutoApprove:
		return models.MatchDecisionStatusAutoApproved
	case models.DecisionPendingReview:
		return models.MatchDecisionStatusPending
	default:
		return models.MatchDecisionStatusRejected
	}
}

// CreateBatch upserts decisions keyed by listing. A rerun over the same
// listing keeps the best score seen so far instead of flapping.
func (r *Repository) CreateBatch(ctx context.Context, decisions []*models.MatchDecision) error {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.CreateBatch")
	defer span.End()

	if len(decisions) == 0 {
		return nil
	}

	now := time.Now().UTC()
	ib := database.NewInsertBuilder()
	ib.InsertInto("match_decisions")
	ib.Cols("id", "listing_id", "product_id", "score", "decision", "status", "junk_rule", "created_at", "updated_at")

	for _, d := range decisions {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		if d.Status == "" {
			d.Status = statusFor(d.Decision)
		}
		d.CreatedAt = now
		d.UpdatedAt = now
		ib.Values(d.ID, d.ListingID, d.ProductID, d.Score, d.Decision, d.Status, d.JunkRule, d.CreatedAt, d.UpdatedAt)
	}

	ub := ib.OnConflict("listing_id")
	ub.Set(
		ub.Assign("product_id", database.Excluded("product_id")),
		ub.Assign("score", database.Greatest("match_decisions.score", "EXCLUDED.score")),
		ub.Assign("decision", database.Excluded("decision")),
		ub.Assign("status", database.Excluded("status")),
		ub.Assign("junk_rule", database.Excluded("junk_rule")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create match decisions batch")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match decisions")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(decisions)}).Debug("Created match decisions batch")
	return nil
}

// Get retrieves a match decision by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(decisionColumns)
	sb.From("match_decisions")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var decision models.MatchDecision
	if err := r.db.GetContext(ctx, &decision, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match decision %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get match decision")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match decision")
	}

	return &decision, nil
}

// ListPending retrieves decisions waiting for review, highest score first
func (r *Repository) ListPending(ctx context.Context, limit int) ([]models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.ListPending")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(decisionColumns)
	sb.From("match_decisions")
	sb.Where(sb.Equal("status", models.MatchDecisionStatusPending))
	sb.OrderBy("score DESC", "created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var decisions []models.MatchDecision
	if err := r.db.SelectContext(ctx, &decisions, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending match decisions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending match decisions")
	}

	return decisions, nil
}

// UpdateStatusByID resolves a pending decision
func (r *Repository) UpdateStatusByID(ctx context.Context, id string, status string, resolvedBy *string) error {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.UpdateStatusByID")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("match_decisions")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("resolved_at", now),
		sb.Assign("resolved_by", resolvedBy),
		sb.Assign("updated_at", now),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update match decision status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update match decision status")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("match decision %s not found", id))
	}

	return nil
}
