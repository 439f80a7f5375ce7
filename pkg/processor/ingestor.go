package processor

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/AudioList/clover/pkg/kafka"
	"github.com/AudioList/clover/pkg/models"
	"github.com/AudioList/clover/pkg/tracing"
)

// ListingStore accepts scraped listings from the crawler pipeline
type ListingStore interface {
	Upsert(ctx context.Context, req *models.UpsertListingRequest) (*models.Listing, error)
}

// Ingestor bridges the Kafka consumer and listing storage
type Ingestor struct {
	listings ListingStore
	logger   ectologger.Logger
}

// NewIngestor creates a new listing ingestor
func NewIngestor(listings ListingStore, logger ectologger.Logger) *Ingestor {
	return &Ingestor{
		listings: listings,
		logger:   logger,
	}
}

// HandleMessage stores one scraped listing. Returning an error leaves the
// message uncommitted so the consumer redelivers it; the upsert key makes
// redelivery idempotent.
func (i *Ingestor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Ingestor.HandleMessage")
	defer span.End()

	listing, err := i.listings.Upsert(ctx, msg.Listing)
	if err != nil {
		return err
	}

	i.logger.WithContext(ctx).WithFields(map[string]any{
		"listing_id": listing.ID,
		"source":     listing.Source,
	}).Debug("Ingested listing")
	return nil
}
