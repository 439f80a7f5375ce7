package product

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

// Repository handles canonical product persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new product repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

const productColumns = "id, name, brand, category_id, family_id, variant_kind, quality_score, is_best_variant, created_at, updated_at, deleted_at"

// Create creates a new canonical product
func (r *Repository) Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	product := &models.Product{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Brand:        req.Brand,
		CategoryID:   req.CategoryID,
		FamilyID:     req.FamilyID,
		VariantKind:  req.VariantKind,
		QualityScore: req.QualityScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if product.VariantKind == "" {
		product.VariantKind = models.VariantKindBase
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("products")
	sb.Cols("id", "name", "brand", "category_id", "family_id", "variant_kind", "quality_score", "is_best_variant", "created_at", "updated_at")
	sb.Values(product.ID, product.Name, product.Brand, product.CategoryID, product.FamilyID, product.VariantKind, product.QualityScore, product.IsBestVariant, product.CreatedAt, product.UpdatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"product_id": product.ID}).Error("Failed to create product")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create product")
	}

	return product, nil
}

// Get retrieves a product by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(productColumns)
	sb.From("products")
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("product %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get product")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get product")
	}

	return &product, nil
}

// List retrieves products, optionally filtered by category
func (r *Repository) List(ctx context.Context, categoryID string, limit int) ([]models.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(productColumns)
	sb.From("products")
	where := []string{sb.IsNull("deleted_at")}
	if categoryID != "" {
		where = append(where, sb.Equal("category_id", categoryID))
	}
	sb.Where(where...)
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var products []models.Product
	if err := r.db.SelectContext(ctx, &products, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list products")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list products")
	}

	return products, nil
}

// Update applies the non-nil fields of the request to a product
func (r *Repository) Update(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Update")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("products")

	assignments := []string{sb.Assign("updated_at", time.Now().UTC())}
	if req.Name != nil {
		assignments = append(assignments, sb.Assign("name", *req.Name))
	}
	if req.Brand != nil {
		assignments = append(assignments, sb.Assign("brand", *req.Brand))
	}
	if req.CategoryID != nil {
		assignments = append(assignments, sb.Assign("category_id", *req.CategoryID))
	}
	if req.FamilyID != nil {
		assignments = append(assignments, sb.Assign("family_id", *req.FamilyID))
	}
	if req.VariantKind != nil {
		assignments = append(assignments, sb.Assign("variant_kind", *req.VariantKind))
	}
	if req.QualityScore != nil {
		assignments = append(assignments, sb.Assign("quality_score", *req.QualityScore))
	}
	sb.Set(assignments...)
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update product")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update product")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("product %s not found", id))
	}

	return r.Get(ctx, id)
}

// Delete soft deletes a product
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.Delete")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("products")
	sb.Set(
		sb.Assign("deleted_at", now),
		sb.Assign("updated_at", now),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete product")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete product")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("product %s not found", id))
	}

	return nil
}

// ListCandidates returns all products in a category as match candidates.
// Result order is fixed so tie-breaks in the matcher stay deterministic
// across runs.
func (r *Repository) ListCandidates(ctx context.Context, categoryID string) ([]models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.ListCandidates")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name")
	sb.From("products")
	sb.Where(
		sb.Equal("category_id", categoryID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()
	var candidates []models.Candidate
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"category_id": categoryID}).Error("Failed to list candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list candidates")
	}

	return candidates, nil
}

// ListFamilyMembers returns every product belonging to a variant family,
// grouped by family ID. Member order within a family is fixed by creation
// time so tie-breaks stay deterministic.
func (r *Repository) ListFamilyMembers(ctx context.Context) (map[string][]models.FamilyMember, error) {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.ListFamilyMembers")
	defer span.End()

	query := `
		SELECT id, family_id, variant_kind, quality_score, is_best_variant
		FROM products
		WHERE family_id IS NOT NULL
		AND deleted_at IS NULL
		ORDER BY family_id, created_at ASC, id ASC
	`

	var members []models.FamilyMember
	if err := r.db.SelectContext(ctx, &members, query); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list family members")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list family members")
	}

	families := make(map[string][]models.FamilyMember)
	for _, m := range members {
		families[m.FamilyID] = append(families[m.FamilyID], m)
	}

	return families, nil
}

// ApplyVariantFlags applies a best-variant diff in one transaction so a
// family is never observed with two winners.
func (r *Repository) ApplyVariantFlags(ctx context.Context, toMarkBest, toMarkNotBest []string) error {
	ctx, span := tracing.StartSpan(ctx, "product.Repository.ApplyVariantFlags")
	defer span.End()

	if len(toMarkBest) == 0 && len(toMarkNotBest) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to begin variant flag transaction")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to apply variant flags")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	if err := r.setBestFlag(ctx, tx, toMarkNotBest, false, now); err != nil {
		return err
	}
	if err := r.setBestFlag(ctx, tx, toMarkBest, true, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to commit variant flags")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to apply variant flags")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"marked_best":     len(toMarkBest),
		"marked_not_best": len(toMarkNotBest),
	}).Debug("Applied variant flags")
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) setBestFlag(ctx context.Context, tx execer, ids []string, best bool, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("products")
	sb.Set(
		sb.Assign("is_best_variant", best),
		sb.Assign("updated_at", now),
	)
	sb.Where(sb.In("id", idsToAny(ids)...))

	query, args := sb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to set best variant flags")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to apply variant flags")
	}
	return nil
}

func idsToAny(ids []string) []any {
	result := make([]any, len(ids))
	for i, id := range ids {
		result[i] = id
	}
	return result
}
