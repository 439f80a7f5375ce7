package processor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcontext "github.com/AudioList/clover/pkg/context"
	"github.com/AudioList/clover/pkg/events"
	"github.com/AudioList/clover/pkg/matching"
	"github.com/AudioList/clover/pkg/models"
	"github.com/AudioList/clover/pkg/variants"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func scoreOf(v float64) *float64 {
	return &v
}

type fakeCatalog struct {
	mu         sync.Mutex
	candidates map[string][]models.Candidate
	families   map[string][]models.FamilyMember
	failFor    map[string]error
	applied    []variants.Diff
	applyErrs  []error
	batchIDs   []string
}

func (f *fakeCatalog) ListCandidates(ctx context.Context, categoryID string) ([]models.Candidate, error) {
	f.mu.Lock()
	f.batchIDs = append(f.batchIDs, appcontext.GetBatchID(ctx))
	f.mu.Unlock()

	if err, ok := f.failFor[categoryID]; ok {
		return nil, err
	}
	return f.candidates[categoryID], nil
}

func (f *fakeCatalog) ListFamilyMembers(_ context.Context) (map[string][]models.FamilyMember, error) {
	return f.families, nil
}

func (f *fakeCatalog) ApplyVariantFlags(_ context.Context, toMarkBest, toMarkNotBest []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.applyErrs) > 0 {
		err := f.applyErrs[0]
		f.applyErrs = f.applyErrs[1:]
		if err != nil {
			return err
		}
	}
	f.applied = append(f.applied, variants.Diff{ToMarkBest: toMarkBest, ToMarkNotBest: toMarkNotBest})
	return nil
}

type fakeListings struct {
	mu       sync.Mutex
	byCat    map[string][]models.Listing
	statuses map[string]string
}

func (f *fakeListings) ListCategoriesWithUnmatched(_ context.Context) ([]string, error) {
	cats := make([]string, 0, len(f.byCat))
	for c := range f.byCat {
		cats = append(cats, c)
	}
	return cats, nil
}

func (f *fakeListings) ListUnmatched(_ context.Context, categoryID string, _ int) ([]models.Listing, error) {
	return f.byCat[categoryID], nil
}

func (f *fakeListings) UpdateStatus(_ context.Context, id string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[string]string)
	}
	f.statuses[id] = status
	return nil
}

type fakeDecisions struct {
	mu       sync.Mutex
	rows     []*models.MatchDecision
	failures int
}

func (f *fakeDecisions) CreateBatch(_ context.Context, decisions []*models.MatchDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("write failed")
	}
	f.rows = append(f.rows, decisions...)
	return nil
}

func (f *fakeDecisions) byListing() map[string]*models.MatchDecision {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*models.MatchDecision, len(f.rows))
	for _, d := range f.rows {
		out[d.ListingID] = d
	}
	return out
}

type fakeEmitter struct {
	mu        sync.Mutex
	decisions map[string]models.Decision
	junk      map[string]string
	diffs     []variants.Diff
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{
		decisions: make(map[string]models.Decision),
		junk:      make(map[string]string),
	}
}

func (f *fakeEmitter) EmitListingDecisions(_ context.Context, decisions []events.ListingDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range decisions {
		f.decisions[d.ListingID] = d.Decision
	}
	return nil
}

func (f *fakeEmitter) EmitListingJunk(_ context.Context, listingID string, ruleName string, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.junk[listingID] = ruleName
	return nil
}

func (f *fakeEmitter) EmitVariantFlagsApplied(_ context.Context, diff variants.Diff) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.diffs = append(f.diffs, diff)
	return nil
}

func defaultConfig() Config {
	return Config{
		Policy:            matching.Policy{AutoApproveThreshold: 0.85, PendingReviewThreshold: 0.60},
		CategoryWorkers:   2,
		ListingBatchSize:  100,
		PersistRetryCount: 3,
	}
}

func TestReconcilerRun(t *testing.T) {
	ctx := context.Background()

	catalog := &fakeCatalog{
		candidates: map[string][]models.Candidate{
			"iems": {
				{ID: "p1", Name: "Moondrop Aria"},
				{ID: "p2", Name: "KZ ZS10 Pro"},
			},
		},
	}
	listings := &fakeListings{
		byCat: map[string][]models.Listing{
			"iems": {
				{ID: "l1", Title: "Moondrop Aria In-Ear Monitors Free Shipping", CategoryID: "iems", Status: models.ListingStatusUnmatched},
				{ID: "l2", Title: "Wholesale Lot of 10 Earbuds Case Only", CategoryID: "iems", Status: models.ListingStatusUnmatched},
				{ID: "l3", Title: "Vintage Turntable Dust Cover Kitchen Mixer", CategoryID: "iems", Status: models.ListingStatusUnmatched},
			},
		},
	}
	decisions := &fakeDecisions{}
	emitter := newFakeEmitter()

	r := NewReconciler(catalog, listings, decisions, emitter, defaultConfig(), testLogger())
	report, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.CategoriesProcessed)
	assert.Empty(t, report.CategoriesFailed)
	assert.Equal(t, 2, report.ListingsScored)
	assert.Equal(t, 1, report.ListingsJunk)
	assert.Equal(t, 1, report.AutoApproved)

	rows := decisions.byListing()
	require.Len(t, rows, 3)

	// clean listing auto-approves against its product
	require.NotNil(t, rows["l1"].ProductID)
	assert.Equal(t, "p1", *rows["l1"].ProductID)
	assert.Equal(t, models.DecisionAutoApprove, rows["l1"].Decision)
	assert.Equal(t, models.ListingStatusReconciled, listings.statuses["l1"])
	assert.Equal(t, models.DecisionAutoApprove, emitter.decisions["l1"])

	// junk listing is rejected with the rule recorded, never scored
	require.NotNil(t, rows["l2"].JunkRule)
	assert.Equal(t, models.DecisionReject, rows["l2"].Decision)
	assert.Equal(t, models.ListingStatusJunk, listings.statuses["l2"])
	assert.NotEmpty(t, emitter.junk["l2"])

	// unrelated listing scores low and is rejected without a product link
	assert.Equal(t, models.DecisionReject, rows["l3"].Decision)
	assert.Nil(t, rows["l3"].ProductID)
	assert.Equal(t, models.ListingStatusReconciled, listings.statuses["l3"])
}

func TestReconcilerRunTagsBatchContext(t *testing.T) {
	ctx := context.Background()

	catalog := &fakeCatalog{
		candidates: map[string][]models.Candidate{
			"iems": {{ID: "p1", Name: "Moondrop Aria"}},
		},
	}
	listings := &fakeListings{
		byCat: map[string][]models.Listing{
			"iems": {{ID: "l1", Title: "Moondrop Aria", CategoryID: "iems", Status: models.ListingStatusUnmatched}},
		},
	}

	r := NewReconciler(catalog, listings, &fakeDecisions{}, newFakeEmitter(), defaultConfig(), testLogger())

	_, err := r.Run(ctx)
	require.NoError(t, err)
	_, err = r.Run(ctx)
	require.NoError(t, err)

	// every collaborator call carries the run's batch id, one id per run
	require.Len(t, catalog.batchIDs, 2)
	assert.NotEmpty(t, catalog.batchIDs[0])
	assert.NotEmpty(t, catalog.batchIDs[1])
	assert.NotEqual(t, catalog.batchIDs[0], catalog.batchIDs[1])
}

func TestReconcilerCategoryIsolation(t *testing.T) {
	ctx := context.Background()

	catalog := &fakeCatalog{
		candidates: map[string][]models.Candidate{
			"ok": {{ID: "p1", Name: "Moondrop Aria"}},
		},
		failFor: map[string]error{
			"broken": errors.New("catalog unavailable"),
		},
	}
	listings := &fakeListings{
		byCat: map[string][]models.Listing{
			"ok":     {{ID: "l1", Title: "Moondrop Aria", CategoryID: "ok", Status: models.ListingStatusUnmatched}},
			"broken": {{ID: "l2", Title: "KZ ZS10", CategoryID: "broken", Status: models.ListingStatusUnmatched}},
		},
	}
	decisions := &fakeDecisions{}
	emitter := newFakeEmitter()

	r := NewReconciler(catalog, listings, decisions, emitter, defaultConfig(), testLogger())
	report, err := r.Run(ctx)
	require.NoError(t, err)

	// the broken category is reported, the healthy one still completes
	assert.Equal(t, 1, report.CategoriesProcessed)
	assert.Equal(t, []string{"broken"}, report.CategoriesFailed)
	assert.Contains(t, decisions.byListing(), "l1")
	assert.NotContains(t, decisions.byListing(), "l2")
}

func TestReconcilerPersistRetry(t *testing.T) {
	ctx := context.Background()

	catalog := &fakeCatalog{
		candidates: map[string][]models.Candidate{
			"iems": {{ID: "p1", Name: "Moondrop Aria"}},
		},
	}
	listings := &fakeListings{
		byCat: map[string][]models.Listing{
			"iems": {{ID: "l1", Title: "Moondrop Aria", CategoryID: "iems", Status: models.ListingStatusUnmatched}},
		},
	}
	emitter := newFakeEmitter()

	t.Run("transient failures are retried", func(t *testing.T) {
		decisions := &fakeDecisions{failures: 2}
		r := NewReconciler(catalog, listings, decisions, emitter, defaultConfig(), testLogger())

		report, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.CategoriesProcessed)
		assert.Contains(t, decisions.byListing(), "l1")
	})

	t.Run("exhausted retries fail the category", func(t *testing.T) {
		decisions := &fakeDecisions{failures: 10}
		r := NewReconciler(catalog, listings, decisions, emitter, defaultConfig(), testLogger())

		report, err := r.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.CategoriesProcessed)
		assert.Equal(t, []string{"iems"}, report.CategoriesFailed)
		assert.Empty(t, decisions.byListing())
	})
}

func TestReconcilerInvalidPolicy(t *testing.T) {
	cfg := defaultConfig()
	cfg.Policy = matching.Policy{AutoApproveThreshold: 0.5, PendingReviewThreshold: 0.9}

	r := NewReconciler(&fakeCatalog{}, &fakeListings{}, &fakeDecisions{}, newFakeEmitter(), cfg, testLogger())
	_, err := r.Run(context.Background())
	assert.Error(t, err)
}

func TestVariantProcessorRun(t *testing.T) {
	ctx := context.Background()

	t.Run("applies diff and emits event", func(t *testing.T) {
		catalog := &fakeCatalog{
			families: map[string][]models.FamilyMember{
				"fam1": {
					{ID: "A", FamilyID: "fam1", QualityScore: scoreOf(80)},
					{ID: "B", FamilyID: "fam1", QualityScore: scoreOf(92)},
				},
			},
		}
		emitter := newFakeEmitter()

		p := NewVariantProcessor(catalog, emitter, 3, testLogger())
		diff, err := p.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, []string{"B"}, diff.ToMarkBest)
		require.Len(t, catalog.applied, 1)
		assert.Equal(t, []string{"B"}, catalog.applied[0].ToMarkBest)
		require.Len(t, emitter.diffs, 1)
	})

	t.Run("settled families write and emit nothing", func(t *testing.T) {
		catalog := &fakeCatalog{
			families: map[string][]models.FamilyMember{
				"fam1": {
					{ID: "A", FamilyID: "fam1", QualityScore: scoreOf(80)},
					{ID: "B", FamilyID: "fam1", QualityScore: scoreOf(92), IsBestVariant: true},
				},
			},
		}
		emitter := newFakeEmitter()

		p := NewVariantProcessor(catalog, emitter, 3, testLogger())
		diff, err := p.Run(ctx)
		require.NoError(t, err)

		assert.True(t, diff.Empty())
		assert.Empty(t, catalog.applied)
		assert.Empty(t, emitter.diffs)
	})

	t.Run("retries transient apply failures", func(t *testing.T) {
		catalog := &fakeCatalog{
			families: map[string][]models.FamilyMember{
				"fam1": {
					{ID: "A", FamilyID: "fam1", QualityScore: scoreOf(80)},
					{ID: "B", FamilyID: "fam1", QualityScore: scoreOf(92)},
				},
			},
			applyErrs: []error{errors.New("write failed")},
		}
		emitter := newFakeEmitter()

		p := NewVariantProcessor(catalog, emitter, 3, testLogger())
		_, err := p.Run(ctx)
		require.NoError(t, err)
		require.Len(t, catalog.applied, 1)
	})
}
