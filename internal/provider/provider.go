// Package provider defines the place-data provider abstraction and its two
// implementations: the Google Places API and the Outscraper scraping
// service. Both emit the same normalized model types so everything
// downstream is provider-agnostic.
package provider

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/segunak/places-cli/internal/model"
	"github.com/segunak/places-cli/internal/reconcile"
)

// Kind identifies a provider implementation.
type Kind string

const (
	KindGoogle     Kind = "google"
	KindOutscraper Kind = "outscraper"
)

// ParseKind validates a provider name from config or CLI flags.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGoogle:
		return KindGoogle, nil
	case KindOutscraper:
		return KindOutscraper, nil
	default:
		return "", eris.Errorf("provider: unknown provider %q (want google or outscraper)", s)
	}
}

// ErrInsufficientBalance reports that the Outscraper account balance is
// below the configured threshold. Nothing paid runs once this fires.
var ErrInsufficientBalance = errors.New("provider: outscraper balance below threshold")

// ErrNoPlaceID reports that a place could not be resolved to a place ID.
var ErrNoPlaceID = errors.New("provider: no place id found")

// Provider fetches and normalizes place data from one upstream source.
type Provider interface {
	Kind() Kind

	// FindPlaceID searches for a place by name and returns its place ID.
	// When several results come back, an exact normalized name match wins;
	// otherwise the first result does. Returns ErrNoPlaceID when the search
	// comes up empty.
	FindPlaceID(ctx context.Context, placeName string) (string, error)

	// ValidatePlaceID reports whether a known place ID is still current.
	ValidatePlaceID(ctx context.Context, placeID string) (bool, error)

	// ResolvePlaceID returns a usable place ID: the known one when it still
	// validates, otherwise a fresh search by name.
	ResolvePlaceID(ctx context.Context, placeName, placeID string) (string, error)

	// PlaceDetails fetches the normalized detail block.
	PlaceDetails(ctx context.Context, placeID string) (*model.PlaceDetails, error)

	// PlaceReviews fetches reviews. Providers without review data return an
	// empty set with a message, not an error.
	PlaceReviews(ctx context.Context, placeID string) (*model.ReviewSet, error)

	// PlacePhotos fetches and selects photo URLs.
	PlacePhotos(ctx context.Context, placeID string) (*model.PhotoSet, error)

	// IsOperational reports whether the place is still open. Lookup
	// failures fail open: a place is only marked closed on positive
	// evidence.
	IsOperational(ctx context.Context, placeID string) (bool, error)

	// AllPlaceData assembles the combined snapshot. Details are required;
	// review and photo failures degrade to empty sections with messages.
	// skipPhotos suppresses the photo fetch entirely, for callers that
	// already hold photos and don't want to pay for another scrape.
	AllPlaceData(ctx context.Context, placeID, placeName string, skipPhotos bool) (*model.PlaceSnapshot, error)
}

// resolvePlaceID is the shared validate-else-find flow.
func resolvePlaceID(ctx context.Context, p Provider, placeName, placeID string) (string, error) {
	if placeID != "" {
		ok, err := p.ValidatePlaceID(ctx, placeID)
		if err != nil {
			return "", err
		}
		if ok {
			return placeID, nil
		}
	}
	if placeName == "" {
		return "", eris.Wrap(ErrNoPlaceID, "provider: no name to search with")
	}
	return p.FindPlaceID(ctx, placeName)
}

// searchResult is the minimal shape pickMatch needs.
type searchResult struct {
	id   string
	name string
}

// pickMatch picks a place ID from search results: exact normalized name
// match first, else the first result.
func pickMatch(query string, results []searchResult) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	want := reconcile.Normalize(query)
	for _, r := range results {
		if reconcile.Normalize(r.name) == want && r.id != "" {
			return r.id, true
		}
	}
	if results[0].id == "" {
		return "", false
	}
	return results[0].id, true
}

const closedPermanently = "CLOSED_PERMANENTLY"

var (
	// countrySuffixes are trailing country designations stripped from
	// formatted addresses; the dataset is single-country.
	countrySuffixes = []string{
		", USA", ", United States", ", United States of America", ", US",
	}
	stateAbbrevRe = regexp.MustCompile(`,\s*([A-Za-z]{2})(\s+\d|$)`)
	titleCaser    = cases.Title(language.AmericanEnglish)
)

// cleanAddress strips the country suffix and title-cases an address while
// keeping the two-letter state code uppercase.
func cleanAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	for _, suffix := range countrySuffixes {
		if strings.HasSuffix(addr, suffix) {
			addr = strings.TrimSuffix(addr, suffix)
			break
		}
	}
	addr = titleCaser.String(strings.ToLower(addr))
	return stateAbbrevRe.ReplaceAllStringFunc(addr, strings.ToUpper)
}

// mapsURLFromCID builds a Google Maps profile URL from a CID.
func mapsURLFromCID(cid string) string {
	if cid == "" {
		return ""
	}
	return "https://maps.google.com/?cid=" + cid
}
