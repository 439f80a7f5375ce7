package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AudioList/clover/pkg/events"
	"github.com/AudioList/clover/pkg/kafka"
	"github.com/AudioList/clover/pkg/matching"
	"github.com/AudioList/clover/pkg/models"
	"github.com/AudioList/clover/pkg/processor"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// memoryListings is an in-memory stand-in for the listing repository,
// keyed by (source, source_id) the way the Postgres upsert is.
type memoryListings struct {
	mu   sync.Mutex
	byID map[string]*models.Listing
}

func newMemoryListings() *memoryListings {
	return &memoryListings{byID: make(map[string]*models.Listing)}
}

func (m *memoryListings) key(source, sourceID string) string {
	return source + "|" + sourceID
}

func (m *memoryListings) Upsert(ctx context.Context, req *models.UpsertListingRequest) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.byID {
		if l.Source == req.Source && l.SourceID == req.SourceID {
			l.Title = req.Title
			l.CategoryID = req.CategoryID
			l.Status = models.ListingStatusUnmatched
			l.ScrapedAt = req.ScrapedAt
			return l, nil
		}
	}

	listing := &models.Listing{
		ID:         uuid.New().String(),
		Source:     req.Source,
		SourceID:   req.SourceID,
		Title:      req.Title,
		CategoryID: req.CategoryID,
		Status:     models.ListingStatusUnmatched,
		ScrapedAt:  req.ScrapedAt,
	}
	m.byID[listing.ID] = listing
	return listing, nil
}

func (m *memoryListings) ListCategoriesWithUnmatched(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	for _, l := range m.byID {
		if l.Status == models.ListingStatusUnmatched {
			seen[l.CategoryID] = true
		}
	}

	categories := make([]string, 0, len(seen))
	for c := range seen {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories, nil
}

func (m *memoryListings) ListUnmatched(ctx context.Context, categoryID string, limit int) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var listings []models.Listing
	for _, l := range m.byID {
		if l.CategoryID == categoryID && l.Status == models.ListingStatusUnmatched {
			listings = append(listings, *l)
		}
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	if limit > 0 && len(listings) > limit {
		listings = listings[:limit]
	}
	return listings, nil
}

func (m *memoryListings) UpdateStatus(ctx context.Context, id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("listing %s not found", id)
	}
	l.Status = status
	return nil
}

func (m *memoryListings) find(source, sourceID string) *models.Listing {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.byID {
		if l.Source == source && l.SourceID == sourceID {
			return l
		}
	}
	return nil
}

func (m *memoryListings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// memoryCatalog holds canonical products and variant families.
type memoryCatalog struct {
	mu         sync.Mutex
	candidates map[string][]models.Candidate
	families   map[string][]models.FamilyMember
}

func (m *memoryCatalog) ListCandidates(ctx context.Context, categoryID string) ([]models.Candidate, error) {
	return m.candidates[categoryID], nil
}

func (m *memoryCatalog) ListFamilyMembers(ctx context.Context) (map[string][]models.FamilyMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string][]models.FamilyMember, len(m.families))
	for family, members := range m.families {
		out[family] = append([]models.FamilyMember(nil), members...)
	}
	return out, nil
}

func (m *memoryCatalog) ApplyVariantFlags(ctx context.Context, toMarkBest, toMarkNotBest []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	flag := func(ids []string, best bool) {
		for _, id := range ids {
			for family, members := range m.families {
				for i := range members {
					if members[i].ID == id {
						m.families[family][i].IsBestVariant = best
					}
				}
			}
		}
	}
	flag(toMarkNotBest, false)
	flag(toMarkBest, true)
	return nil
}

// memoryDecisions emulates the upsert-by-listing decision store.
type memoryDecisions struct {
	mu        sync.Mutex
	byListing map[string]*models.MatchDecision
}

func newMemoryDecisions() *memoryDecisions {
	return &memoryDecisions{byListing: make(map[string]*models.MatchDecision)}
}

func (m *memoryDecisions) CreateBatch(ctx context.Context, decisions []*models.MatchDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range decisions {
		copied := *d
		m.byListing[d.ListingID] = &copied
	}
	return nil
}

func (m *memoryDecisions) get(listingID string) *models.MatchDecision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byListing[listingID]
}

// recordingPublisher captures events instead of writing to Kafka.
type recordingPublisher struct {
	mu      sync.Mutex
	events  []*kafka.ListingEvent
	batches []int
}

func (p *recordingPublisher) PublishListingEvent(ctx context.Context, event *kafka.ListingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) PublishListingEvents(ctx context.Context, events []*kafka.ListingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	p.batches = append(p.batches, len(events))
	return nil
}

func (p *recordingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType)
	}
	sort.Strings(types)
	return types
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
	p.batches = nil
}

func listingMessage(t *testing.T, source, sourceID, title, categoryID string) *kafka.IncomingMessage {
	t.Helper()

	payload, err := json.Marshal(models.UpsertListingRequest{
		Source:     source,
		SourceID:   sourceID,
		Title:      title,
		CategoryID: categoryID,
		ScrapedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)

	msg := &kafka.IncomingMessage{Key: sourceID, Value: payload, Topic: "scraped-listings"}
	require.NoError(t, msg.ParseListing())
	return msg
}

func TestReconcileFlow(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	catalog := &memoryCatalog{
		candidates: map[string][]models.Candidate{
			"iem": {
				{ID: "p1", Name: "Moondrop Aria"},
				{ID: "p2", Name: "KZ ZS10 Pro"},
				{ID: "p3", Name: "7Hz Timeless"},
			},
		},
	}
	store := newMemoryListings()
	decisions := newMemoryDecisions()
	publisher := &recordingPublisher{}
	emitter := events.NewEmitter(publisher, logger)

	// Ingest scraped listings the way the consumer delivers them.
	ingestor := processor.NewIngestor(store, logger)
	messages := []*kafka.IncomingMessage{
		listingMessage(t, "ebay", "e1", "MOONDROP Aria Official In-Ear Monitors - Brand New", "iem"),
		listingMessage(t, "ebay", "e2", "KZ ZS10 Pro Replica 1:1 Quality", "iem"),
		listingMessage(t, "amzn", "a1", "KZ ZS10", "iem"),
		listingMessage(t, "amzn", "a2", "Guitar Tuner Pedal", "iem"),
	}
	for _, msg := range messages {
		require.NoError(t, ingestor.HandleMessage(ctx, msg))
	}

	// A re-scrape of the same offer must not create a second listing.
	require.NoError(t, ingestor.HandleMessage(ctx,
		listingMessage(t, "ebay", "e1", "MOONDROP Aria Official In-Ear Monitors - Brand New", "iem")))
	assert.Equal(t, 4, store.count())

	reconciler := processor.NewReconciler(catalog, store, decisions, emitter, processor.Config{
		Policy: matching.Policy{
			AutoApproveThreshold:   0.85,
			PendingReviewThreshold: 0.60,
		},
	}, logger)

	report, err := reconciler.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.CategoriesProcessed)
	assert.Empty(t, report.CategoriesFailed)
	assert.Equal(t, 3, report.ListingsScored)
	assert.Equal(t, 1, report.ListingsJunk)
	assert.Equal(t, 1, report.AutoApproved)
	assert.Equal(t, 1, report.PendingReview)
	assert.Equal(t, 1, report.Rejected)

	t.Run("NoisyTitleAutoApproved", func(t *testing.T) {
		listing := store.find("ebay", "e1")
		require.NotNil(t, listing)
		assert.Equal(t, models.ListingStatusReconciled, listing.Status)

		d := decisions.get(listing.ID)
		require.NotNil(t, d)
		assert.Equal(t, models.DecisionAutoApprove, d.Decision)
		assert.Equal(t, models.MatchDecisionStatusAutoApproved, d.Status)
		require.NotNil(t, d.ProductID)
		assert.Equal(t, "p1", *d.ProductID)
		assert.InDelta(t, 1.0, d.Score, 1e-9)
	})

	t.Run("CounterfeitTitleJunked", func(t *testing.T) {
		listing := store.find("ebay", "e2")
		require.NotNil(t, listing)
		assert.Equal(t, models.ListingStatusJunk, listing.Status)

		d := decisions.get(listing.ID)
		require.NotNil(t, d)
		assert.Equal(t, models.DecisionReject, d.Decision)
		assert.Equal(t, models.MatchDecisionStatusRejected, d.Status)
		assert.Nil(t, d.ProductID)
		require.NotNil(t, d.JunkRule)
		assert.Equal(t, "replica", *d.JunkRule)
	})

	t.Run("PartialTitlePendingReview", func(t *testing.T) {
		listing := store.find("amzn", "a1")
		require.NotNil(t, listing)
		assert.Equal(t, models.ListingStatusReconciled, listing.Status)

		d := decisions.get(listing.ID)
		require.NotNil(t, d)
		assert.Equal(t, models.DecisionPendingReview, d.Decision)
		assert.Equal(t, models.MatchDecisionStatusPending, d.Status)
		require.NotNil(t, d.ProductID)
		assert.Equal(t, "p2", *d.ProductID)
		assert.GreaterOrEqual(t, d.Score, 0.60)
		assert.Less(t, d.Score, 0.85)
	})

	t.Run("UnrelatedTitleRejected", func(t *testing.T) {
		listing := store.find("amzn", "a2")
		require.NotNil(t, listing)
		assert.Equal(t, models.ListingStatusReconciled, listing.Status)

		d := decisions.get(listing.ID)
		require.NotNil(t, d)
		assert.Equal(t, models.DecisionReject, d.Decision)
		assert.Equal(t, models.MatchDecisionStatusRejected, d.Status)
		assert.Nil(t, d.ProductID)
		assert.Less(t, d.Score, 0.60)
	})

	t.Run("EventsEmitted", func(t *testing.T) {
		assert.Equal(t, []string{
			"listing.auto_approved",
			"listing.junk",
			"listing.pending_review",
			"listing.rejected",
		}, publisher.eventTypes())

		// the three scored decisions leave in one produce call; junk is single
		assert.Equal(t, []int{3}, publisher.batches)
	})

	t.Run("SecondRunIsConverged", func(t *testing.T) {
		publisher.reset()

		report, err := reconciler.Run(ctx)
		require.NoError(t, err)

		assert.Equal(t, 0, report.CategoriesProcessed)
		assert.Equal(t, 0, report.ListingsScored)
		assert.Empty(t, publisher.eventTypes())
	})
}

func TestVariantResolutionFlow(t *testing.T) {
	ctx := context.Background()
	logger := testLogger()

	score := func(v float64) *float64 { return &v }
	catalog := &memoryCatalog{
		families: map[string][]models.FamilyMember{
			"aria": {
				{ID: "p1", FamilyID: "aria", VariantKind: models.VariantKindBase, QualityScore: score(80), IsBestVariant: true},
				{ID: "p1s", FamilyID: "aria", VariantKind: models.VariantKindTuning, QualityScore: score(92), IsBestVariant: false},
			},
			"timeless": {
				{ID: "p3", FamilyID: "timeless", VariantKind: models.VariantKindBase, IsBestVariant: false},
			},
		},
	}
	publisher := &recordingPublisher{}
	emitter := events.NewEmitter(publisher, logger)

	vp := processor.NewVariantProcessor(catalog, emitter, 3, logger)

	diff, err := vp.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"p1s"}, diff.ToMarkBest)
	assert.Equal(t, []string{"p1"}, diff.ToMarkNotBest)
	assert.Equal(t, []string{"variant.flags_applied"}, publisher.eventTypes())

	t.Run("SecondRunIsSettled", func(t *testing.T) {
		publisher.reset()

		diff, err := vp.Run(ctx)
		require.NoError(t, err)

		assert.True(t, diff.Empty())
		assert.Empty(t, publisher.eventTypes())
	})
}
