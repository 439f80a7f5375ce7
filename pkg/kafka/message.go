package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/AudioList/clover/pkg/models"
)

// IncomingMessage is a fetched Kafka message plus its parsed payload
type IncomingMessage struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Timestamp time.Time
	Topic     string

	Listing *models.UpsertListingRequest
}

// ParseListing decodes the message body as a scraped listing from the
// crawler pipeline.
func (m *IncomingMessage) ParseListing() error {
	var listing models.UpsertListingRequest
	if err := json.Unmarshal(m.Value, &listing); err != nil {
		return fmt.Errorf("failed to parse listing message: %w", err)
	}
	if listing.Source == "" || listing.SourceID == "" || listing.Title == "" {
		return fmt.Errorf("listing message missing source, source_id or title")
	}

	m.Listing = &listing
	return nil
}
