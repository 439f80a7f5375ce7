package models

import (
	"encoding/json"
	"time"
)

// ListingStatus constants
const (
	ListingStatusUnmatched  = "unmatched"
	ListingStatusReconciled = "reconciled"
	ListingStatusJunk       = "junk"
)

// Listing is a scraped marketplace offer waiting to be reconciled against
// the catalog.
type Listing struct {
	ID         string          `json:"id" db:"id"`
	Source     string          `json:"source" db:"source"`
	SourceID   string          `json:"source_id" db:"source_id"`
	Title      string          `json:"title" db:"title"`
	CategoryID string          `json:"category_id" db:"category_id"`
	Price      *float64        `json:"price,omitempty" db:"price"`
	Currency   *string         `json:"currency,omitempty" db:"currency"`
	URL        *string         `json:"url,omitempty" db:"url"`
	Attributes json.RawMessage `json:"attributes,omitempty" db:"attributes"`
	Status     string          `json:"status" db:"status"`
	ScrapedAt  time.Time       `json:"scraped_at" db:"scraped_at"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// UpsertListingRequest is a scraped listing as delivered by the crawler
// pipeline, keyed by (source, source_id).
type UpsertListingRequest struct {
	Source     string          `json:"source" validate:"required"`
	SourceID   string          `json:"source_id" validate:"required"`
	Title      string          `json:"title" validate:"required"`
	CategoryID string          `json:"category_id" validate:"required"`
	Price      *float64        `json:"price,omitempty"`
	Currency   *string         `json:"currency,omitempty"`
	URL        *string         `json:"url,omitempty"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
	ScrapedAt  time.Time       `json:"scraped_at"`
}
