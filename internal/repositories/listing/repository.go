package listing

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

// Repository handles scraped listing persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new listing repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const listingColumns = "id, source, source_id, title, category_id, price, currency, url, attributes, status, scraped_at, created_at, updated_at"

// Upsert stores a scraped listing keyed by (source, source_id). A re-scrape
// refreshes the payload and resets the listing for reconciliation.
func (r *Repository) Upsert(ctx context.Context, req *models.UpsertListingRequest) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	scrapedAt := req.ScrapedAt
	if scrapedAt.IsZero() {
		scrapedAt = now
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("listings")
	ib.Cols("id", "source", "source_id", "title", "category_id", "price", "currency", "url", "attributes", "status", "scraped_at", "created_at", "updated_at")
	ib.Values(uuid.New().String(), req.Source, req.SourceID, req.Title, req.CategoryID, req.Price, req.Currency, req.URL, []byte(req.Attributes), models.ListingStatusUnmatched, scrapedAt, now, now)

	ub := ib.OnConflict("source", "source_id")
	ub.Set(
		ub.Assign("title", database.Excluded("title")),
		ub.Assign("category_id", database.Excluded("category_id")),
		ub.Assign("price", database.Excluded("price")),
		ub.Assign("currency", database.Excluded("currency")),
		ub.Assign("url", database.Excluded("url")),
		ub.Assign("attributes", database.Excluded("attributes")),
		ub.Assign("status", models.ListingStatusUnmatched),
		ub.Assign("scraped_at", database.Excluded("scraped_at")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)
	ib.Returning(listingColumns)

	query, args := ib.Build()
	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source":    req.Source,
			"source_id": req.SourceID,
		}).Error("Failed to upsert listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert listing")
	}

	return &listing, nil
}

// Get retrieves a listing by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns)
	sb.From("listings")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("listing %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get listing")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get listing")
	}

	return &listing, nil
}

// ListUnmatched returns listings in a category still waiting for a
// reconciliation decision, oldest scrape first.
func (r *Repository) ListUnmatched(ctx context.Context, categoryID string, limit int) ([]models.Listing, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListUnmatched")
	defer span.End()

	if limit < 1 {
		limit = 500
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(listingColumns)
	sb.From("listings")
	sb.Where(
		sb.Equal("category_id", categoryID),
		sb.Equal("status", models.ListingStatusUnmatched),
	)
	sb.OrderBy("scraped_at ASC", "id ASC")
	sb.Limit(limit)

	query, args := sb.Build()
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": categoryID}).Error("Failed to list unmatched listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list unmatched listings")
	}

	return listings, nil
}

// ListCategoriesWithUnmatched returns the category IDs that have listings
// waiting for reconciliation. Each category is an independent unit of work.
func (r *Repository) ListCategoriesWithUnmatched(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.ListCategoriesWithUnmatched")
	defer span.End()

	query := `
		SELECT DISTINCT category_id
		FROM listings
		WHERE status = $1
		ORDER BY category_id
	`

	var categories []string
	if err := r.db.SelectContext(ctx, &categories, query, models.ListingStatusUnmatched); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list categories with unmatched listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list categories")
	}

	return categories, nil
}

// UpdateStatus moves a listing between reconciliation states
func (r *Repository) UpdateStatus(ctx context.Context, id string, status string) error {
	ctx, span := tracing.StartSpan(ctx, "listing.Repository.UpdateStatus")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("listings")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update listing status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update listing status")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("listing %s not found", id))
	}

	return nil
}
