package types

import (
	"encoding/json"
	"time"
)

// Availability is the stock status advertised on a product page.
type Availability string

const (
	AvailabilityInStock      Availability = "In Stock"
	AvailabilityOutOfStock   Availability = "Out of Stock"
	AvailabilityPreOrder     Availability = "Pre-Order"
	AvailabilitySoldOut      Availability = "Sold Out"
	AvailabilityComingSoon   Availability = "Coming Soon"
	AvailabilityDiscontinued Availability = "Discontinued"
	AvailabilityUnknown      Availability = "Unknown"
)

// AvailabilityStates lists detectable statuses in scan order. Earlier
// entries win when a page mentions more than one phrase.
var AvailabilityStates = []Availability{
	AvailabilityInStock,
	AvailabilityOutOfStock,
	AvailabilityPreOrder,
	AvailabilitySoldOut,
	AvailabilityComingSoon,
	AvailabilityDiscontinued,
}

// MaxDescriptionLength is the hard cap, in runes, applied to extracted
// product descriptions. Truncation does not respect word boundaries.
const MaxDescriptionLength = 2000

// ProductRecord is one extracted product. Records are immutable after
// emission and append-only in every sink.
type ProductRecord struct {
	URL          string       `json:"url" bson:"url"`
	Name         string       `json:"name" bson:"name"`
	Price        string       `json:"price,omitempty" bson:"price,omitempty"`
	PriceNumeric *float64     `json:"priceNumeric" bson:"price_numeric,omitempty"`
	ImageURL     string       `json:"imageUrl,omitempty" bson:"image_url,omitempty"`
	SKU          string       `json:"sku,omitempty" bson:"sku,omitempty"`
	Availability Availability `json:"availability" bson:"availability"`
	Description  string       `json:"description,omitempty" bson:"description,omitempty"`
	ScrapedAt    time.Time    `json:"scrapedAt" bson:"scraped_at"`
}

// MarshalJSON emits ScrapedAt as RFC 3339 UTC and keeps priceNumeric an
// explicit null when the display price could not be parsed.
func (r *ProductRecord) MarshalJSON() ([]byte, error) {
	type alias ProductRecord
	return json.Marshal(&struct {
		*alias
		ScrapedAt string `json:"scrapedAt"`
	}{
		alias:     (*alias)(r),
		ScrapedAt: r.ScrapedAt.UTC().Format(time.RFC3339),
	})
}

// ListingCandidate is a product link lifted off a listing page, possibly
// with card-level name/price/image. Candidates are ephemeral: each is
// either enqueued as a product request or discarded.
type ListingCandidate struct {
	URL      string
	Name     string
	Price    string
	ImageURL string
}
