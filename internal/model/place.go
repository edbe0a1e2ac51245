package model

import (
	"encoding/json"
	"time"
)

// PurchaseRequired is the normalized answer to "does this place expect a purchase?".
type PurchaseRequired string

// PurchaseRequired values. Unsure is a real state, not a placeholder: the
// record store treats it as an open slot that any provider may fill later.
const (
	PurchaseYes    PurchaseRequired = "Yes"
	PurchaseNo     PurchaseRequired = "No"
	PurchaseUnsure PurchaseRequired = "Unsure"
)

// Parking tag vocabulary. Cost tags come first in a parking list, location
// tags second, so callers can read element zero as the free/paid verdict.
const (
	ParkingFree    = "Free"
	ParkingPaid    = "Paid"
	ParkingUnsure  = "Unsure"
	ParkingStreet  = "Street"
	ParkingLot     = "Lot"
	ParkingGarage  = "Garage"
	ParkingMetered = "Metered"
)

// PlaceDetails is the provider-agnostic detail block for one place. Every
// field except Raw must carry the same value domain regardless of which
// provider produced it.
type PlaceDetails struct {
	PlaceName        string           `json:"place_name"`
	PlaceID          string           `json:"place_id"`
	GoogleMapsURL    string           `json:"google_maps_url"`
	Website          string           `json:"website"`
	Address          string           `json:"address"`
	Description      string           `json:"description"`
	PurchaseRequired PurchaseRequired `json:"purchase_required"`
	Parking          []string         `json:"parking"`
	Latitude         *float64         `json:"latitude"`
	Longitude        *float64         `json:"longitude"`
	Raw              json.RawMessage  `json:"raw_data,omitempty"`
	Error            string           `json:"error,omitempty"`
}

// Empty reports whether the details block carries no provider data.
func (d PlaceDetails) Empty() bool {
	return d.PlaceName == "" && d.Website == "" && d.Address == "" &&
		d.Description == "" && d.Latitude == nil && d.Longitude == nil
}

// Review is one customer review, normalized across providers.
type Review struct {
	ID          string  `json:"review_id"`
	Link        string  `json:"review_link"`
	Rating      float64 `json:"review_rating"`
	Timestamp   int64   `json:"review_timestamp"`
	DatetimeUTC string  `json:"review_datetime_utc"`
	Text        string  `json:"review_text"`
}

// ReviewSet holds the reviews fetched for one place. Providers without
// review data return an empty slice and an explanatory Message, never an
// error.
type ReviewSet struct {
	PlaceID string          `json:"place_id"`
	Message string          `json:"message"`
	Reviews []Review        `json:"reviews_data"`
	Raw     json.RawMessage `json:"raw_data,omitempty"`
}

// PhotoCandidate is one raw photo as reported by a provider, before
// selection. A zero CapturedAt means the provider supplied no date and
// sorts as oldest.
type PhotoCandidate struct {
	URL        string
	CapturedAt time.Time
	Tags       []string
}

// PhotoSet holds the selected photo URLs for one place plus the raw payload
// they were chosen from.
type PhotoSet struct {
	PlaceID string          `json:"place_id"`
	Message string          `json:"message"`
	URLs    []string        `json:"photo_urls"`
	Raw     json.RawMessage `json:"raw_data,omitempty"`
}

// PlaceSnapshot is the combined, normalized provider output for one place.
// Its JSON form is exactly what the cache store persists.
//
// LastUpdated is kept as a string deliberately: freshness checks must treat
// an unparseable timestamp as stale rather than fail the whole snapshot load.
type PlaceSnapshot struct {
	PlaceID     string       `json:"place_id"`
	PlaceName   string       `json:"place_name"`
	Details     PlaceDetails `json:"details"`
	Reviews     ReviewSet    `json:"reviews"`
	Photos      PhotoSet     `json:"photos"`
	DataSource  string       `json:"data_source"`
	LastUpdated string       `json:"last_updated"`
	Error       string       `json:"error,omitempty"`
}

// Stamp sets LastUpdated to now in RFC 3339 UTC.
func (s *PlaceSnapshot) Stamp(now time.Time) {
	s.LastUpdated = now.UTC().Format(time.RFC3339)
}

// Age returns how old the snapshot is relative to now. The second return is
// false when LastUpdated is missing or unparseable.
func (s *PlaceSnapshot) Age(now time.Time) (time.Duration, bool) {
	if s.LastUpdated == "" {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339, s.LastUpdated)
	if err != nil {
		return 0, false
	}
	return now.Sub(t), true
}
