// Package processor drives batch reconciliation: it pulls unmatched listings,
// runs them through the quality gate and matching engine, and persists the
// resulting decisions. Categories are independent units of work and are
// processed concurrently; a failure in one category never aborts the others.
package processor

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appcontext "github.com/AudioList/clover/pkg/context"
	"github.com/AudioList/clover/pkg/events"
	"github.com/AudioList/clover/pkg/matching"
	"github.com/AudioList/clover/pkg/models"
	"github.com/AudioList/clover/pkg/quality"
	"github.com/AudioList/clover/pkg/tracing"
)

// Catalog provides canonical products
type Catalog interface {
	ListCandidates(ctx context.Context, categoryID string) ([]models.Candidate, error)
	ListFamilyMembers(ctx context.Context) (map[string][]models.FamilyMember, error)
	ApplyVariantFlags(ctx context.Context, toMarkBest, toMarkNotBest []string) error
}

// ListingSource provides scraped listings awaiting reconciliation
type ListingSource interface {
	ListCategoriesWithUnmatched(ctx context.Context) ([]string, error)
	ListUnmatched(ctx context.Context, categoryID string, limit int) ([]models.Listing, error)
	UpdateStatus(ctx context.Context, id string, status string) error
}

// DecisionStore persists reconciliation outcomes
type DecisionStore interface {
	CreateBatch(ctx context.Context, decisions []*models.MatchDecision) error
}

// Emitter publishes reconciliation events downstream. Decisions of one
// category go out as a single batch; junk findings are rare and emitted
// individually.
type Emitter interface {
	EmitListingDecisions(ctx context.Context, decisions []events.ListingDecision) error
	EmitListingJunk(ctx context.Context, listingID string, ruleName string, ruleCategory string) error
}

// Config tunes a reconciliation run
type Config struct {
	Policy            matching.Policy
	CategoryWorkers   int
	ListingBatchSize  int
	PersistRetryCount int
}

// RunReport summarizes one reconciliation run
type RunReport struct {
	CategoriesProcessed int      `json:"categories_processed"`
	CategoriesFailed    []string `json:"categories_failed,omitempty"`
	ListingsScored      int      `json:"listings_scored"`
	ListingsJunk        int      `json:"listings_junk"`
	AutoApproved        int      `json:"auto_approved"`
	PendingReview       int      `json:"pending_review"`
	Rejected            int      `json:"rejected"`
}

// Reconciler links scraped listings to canonical products
type Reconciler struct {
	catalog   Catalog
	listings  ListingSource
	decisions DecisionStore
	emitter   Emitter
	engine    *matching.Engine
	gate      *quality.Gate
	config    Config
	logger    ectologger.Logger
}

// NewReconciler creates a reconciler over the given collaborators
func NewReconciler(catalog Catalog, listings ListingSource, decisions DecisionStore, emitter Emitter, config Config, logger ectologger.Logger) *Reconciler {
	if config.CategoryWorkers < 1 {
		config.CategoryWorkers = 1
	}
	if config.ListingBatchSize < 1 {
		config.ListingBatchSize = 500
	}
	if config.PersistRetryCount < 1 {
		config.PersistRetryCount = 3
	}

	return &Reconciler{
		catalog:   catalog,
		listings:  listings,
		decisions: decisions,
		emitter:   emitter,
		engine:    matching.NewEngine(),
		gate:      quality.NewGate(quality.DefaultRules),
		config:    config,
		logger:    logger,
	}
}

// Run reconciles every category that has unmatched listings. Categories are
// fanned out over a bounded worker pool; per-category failures are reported
// in the result, not returned as errors.
func (r *Reconciler) Run(ctx context.Context) (*RunReport, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Reconciler.Run")
	defer span.End()

	if err := r.config.Policy.Validate(); err != nil {
		return nil, err
	}

	// one batch id per run, carried on the context so every repository call
	// and event of this run can be correlated
	batchID := uuid.New().String()
	ctx = appcontext.SetBatchID(ctx, batchID)
	r.logger.WithContext(ctx).WithFields(map[string]any{"batch_id": batchID}).Info("Starting reconciliation run")

	categories, err := r.listings.ListCategoriesWithUnmatched(ctx)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list categories for reconciliation")
		return nil, err
	}

	report := &RunReport{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.CategoryWorkers)

	for _, categoryID := range categories {
		categoryID := categoryID
		g.Go(func() error {
			stats, err := r.reconcileCategory(gctx, categoryID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// partial-failure isolation: record and move on
				report.CategoriesFailed = append(report.CategoriesFailed, categoryID)
				r.logger.WithContext(gctx).WithError(err).WithFields(map[string]any{
					"category_id": categoryID,
				}).Error("Category reconciliation failed")
				return nil
			}
			report.CategoriesProcessed++
			report.ListingsScored += stats.ListingsScored
			report.ListingsJunk += stats.ListingsJunk
			report.AutoApproved += stats.AutoApproved
			report.PendingReview += stats.PendingReview
			report.Rejected += stats.Rejected
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"batch_id":             batchID,
		"categories_processed": report.CategoriesProcessed,
		"categories_failed":    len(report.CategoriesFailed),
		"listings_scored":      report.ListingsScored,
		"listings_junk":        report.ListingsJunk,
	}).Info("Reconciliation run completed")

	return report, nil
}

type categoryStats struct {
	ListingsScored int
	ListingsJunk   int
	AutoApproved   int
	PendingReview  int
	Rejected       int
}

func (r *Reconciler) reconcileCategory(ctx context.Context, categoryID string) (categoryStats, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Reconciler.reconcileCategory")
	defer span.End()

	var stats categoryStats

	candidates, err := r.catalog.ListCandidates(ctx, categoryID)
	if err != nil {
		return stats, err
	}
	index := matching.BuildIndex(candidates)

	listings, err := r.listings.ListUnmatched(ctx, categoryID, r.config.ListingBatchSize)
	if err != nil {
		return stats, err
	}
	if len(listings) == 0 {
		return stats, nil
	}

	decisions := make([]*models.MatchDecision, 0, len(listings))
	junkListings := make(map[string]*quality.Rule)

	for i := range listings {
		listing := &listings[i]

		if rule, junk := r.gate.Inspect(listing.Title); junk {
			ruleName := rule.Name
			decisions = append(decisions, &models.MatchDecision{
				ListingID: listing.ID,
				Decision:  models.DecisionReject,
				Status:    models.MatchDecisionStatusRejected,
				JunkRule:  &ruleName,
			})
			junkListings[listing.ID] = rule
			stats.ListingsJunk++
			continue
		}

		result := r.engine.FindBestMatch(listing.Title, index)
		if result == nil {
			// no candidates in this category, nothing to score against
			continue
		}

		decision := r.config.Policy.Classify(result.Score)
		row := &models.MatchDecision{
			ListingID: listing.ID,
			Score:     result.Score,
			Decision:  decision,
		}
		if decision != models.DecisionReject {
			productID := result.CandidateID
			row.ProductID = &productID
		}
		decisions = append(decisions, row)
		stats.ListingsScored++

		switch decision {
		case models.DecisionAutoApprove:
			stats.AutoApproved++
		case models.DecisionPendingReview:
			stats.PendingReview++
		default:
			stats.Rejected++
		}
	}

	if err := r.persistWithRetry(ctx, decisions); err != nil {
		return stats, err
	}

	r.finalizeListings(ctx, listings, decisions, junkListings, index)

	return stats, nil
}

// finalizeListings moves listings out of the unmatched state and emits
// events. Failures here are logged, never fatal: the decision rows are
// already durable and a rerun converges on the same state.
func (r *Reconciler) finalizeListings(ctx context.Context, listings []models.Listing, decisions []*models.MatchDecision, junkListings map[string]*quality.Rule, index []matching.IndexedCandidate) {
	byListing := make(map[string]*models.MatchDecision, len(decisions))
	for _, d := range decisions {
		byListing[d.ListingID] = d
	}

	scored := make([]events.ListingDecision, 0, len(decisions))

	for i := range listings {
		listing := &listings[i]
		d, ok := byListing[listing.ID]
		if !ok {
			continue
		}

		if rule, junk := junkListings[listing.ID]; junk {
			if err := r.listings.UpdateStatus(ctx, listing.ID, models.ListingStatusJunk); err != nil {
				r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"listing_id": listing.ID}).Error("Failed to mark listing junk")
			}
			if err := r.emitter.EmitListingJunk(ctx, listing.ID, rule.Name, string(rule.Category)); err != nil {
				r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"listing_id": listing.ID}).Error("Failed to emit junk event")
			}
			continue
		}

		if err := r.listings.UpdateStatus(ctx, listing.ID, models.ListingStatusReconciled); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"listing_id": listing.ID}).Error("Failed to update listing status")
		}

		var result *models.MatchResult
		if d.ProductID != nil {
			result = &models.MatchResult{CandidateID: *d.ProductID, Score: d.Score}
			for j := range index {
				if index[j].ID == *d.ProductID {
					result.CandidateName = index[j].Name
					break
				}
			}
		}
		scored = append(scored, events.ListingDecision{
			ListingID: listing.ID,
			Decision:  d.Decision,
			Result:    result,
		})
	}

	if err := r.emitter.EmitListingDecisions(ctx, scored); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(scored)}).Error("Failed to emit decision events")
	}
}

// persistWithRetry writes the decision batch, backing off on failure.
// Decisions are never silently dropped: exhausted retries surface as a
// category failure so the listings stay unmatched and are retried next run.
func (r *Reconciler) persistWithRetry(ctx context.Context, decisions []*models.MatchDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	var err error
	backoff := newFibonacciBackoff(250 * time.Millisecond)
	for attempt := 1; attempt <= r.config.PersistRetryCount; attempt++ {
		if err = r.decisions.CreateBatch(ctx, decisions); err == nil {
			return nil
		}

		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"attempt": attempt,
			"count":   len(decisions),
		}).Warn("Failed to persist decisions, backing off")

		if attempt == r.config.PersistRetryCount {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff()):
		}
	}
	return err
}

// newFibonacciBackoff returns successive delays of base, base, 2*base,
// 3*base, 5*base and so on.
func newFibonacciBackoff(base time.Duration) func() time.Duration {
	prev, curr := time.Duration(0), base
	return func() time.Duration {
		prev, curr = curr, prev+curr
		return prev
	}
}
