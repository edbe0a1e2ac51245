package provider

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/segunak/places-cli/internal/model"
	"github.com/segunak/places-cli/internal/photos"
	"github.com/segunak/places-cli/pkg/outscraper"
	"github.com/segunak/places-cli/pkg/places"
)

const (
	searchLimit  = 3
	reviewsLimit = 30
)

// oscraper implements Provider on the Outscraper scraping service. Place ID
// validation still goes through the Google client: the id-refresh endpoint is
// free, while every Outscraper search is billed.
type oscraper struct {
	client           outscraper.Client
	validator        places.Client
	coordinates      string
	maxPhotos        int
	balanceThreshold float64
}

func newOutscraper(deps Deps) *oscraper {
	return &oscraper{
		client:           deps.Outscraper,
		validator:        deps.Google,
		coordinates:      deps.Location.Coordinates(),
		maxPhotos:        deps.MaxPhotos,
		balanceThreshold: deps.BalanceThreshold,
	}
}

func (o *oscraper) Kind() Kind { return KindOutscraper }

// checkBalance gates construction. Every Outscraper call burns money, so a
// drained account should fail loudly before any work starts.
func (o *oscraper) checkBalance(ctx context.Context) error {
	balance, err := o.client.Balance(ctx)
	if err != nil {
		return eris.Wrap(err, "provider: check outscraper balance")
	}
	if balance < o.balanceThreshold {
		return eris.Wrapf(ErrInsufficientBalance,
			"balance %.2f USD below threshold %.2f USD", balance, o.balanceThreshold)
	}
	return nil
}

func (o *oscraper) FindPlaceID(ctx context.Context, placeName string) (string, error) {
	results, err := o.client.Search(ctx, placeName, searchLimit, o.coordinates)
	if err != nil {
		return "", err
	}

	candidates := make([]searchResult, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, searchResult{id: r.PlaceID, name: r.Name})
	}
	id, ok := pickMatch(placeName, candidates)
	if !ok {
		return "", eris.Wrapf(ErrNoPlaceID, "outscraper: search %q", placeName)
	}
	return id, nil
}

// ValidatePlaceID checks the ID against the no-cost Google id-refresh
// endpoint rather than a billed Outscraper search.
func (o *oscraper) ValidatePlaceID(ctx context.Context, placeID string) (bool, error) {
	if o.validator == nil {
		return false, eris.New("outscraper: no google client configured for id validation")
	}
	return o.validator.ValidateID(ctx, placeID)
}

func (o *oscraper) ResolvePlaceID(ctx context.Context, placeName, placeID string) (string, error) {
	return resolvePlaceID(ctx, o, placeName, placeID)
}

func (o *oscraper) PlaceDetails(ctx context.Context, placeID string) (*model.PlaceDetails, error) {
	place, err := o.lookup(ctx, placeID)
	if err != nil {
		return nil, err
	}

	return &model.PlaceDetails{
		PlaceName:        place.Name,
		PlaceID:          place.PlaceID,
		GoogleMapsURL:    mapsURLFromCID(place.CID),
		Website:          place.Site,
		Address:          cleanAddress(place.FullAddress),
		Description:      place.Description,
		PurchaseRequired: purchaseFromPriceRange(place.Range),
		Parking:          parkingFromAbout(place.About),
		Latitude:         place.Latitude,
		Longitude:        place.Longitude,
		Raw:              place.Raw,
	}, nil
}

func (o *oscraper) PlaceReviews(ctx context.Context, placeID string) (*model.ReviewSet, error) {
	result, err := o.client.Reviews(ctx, placeID, reviewsLimit)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &model.ReviewSet{
			PlaceID: placeID,
			Message: "no reviews returned",
			Reviews: []model.Review{},
		}, nil
	}

	reviews := make([]model.Review, 0, len(result.Reviews))
	for _, r := range result.Reviews {
		reviews = append(reviews, model.Review{
			ID:          r.ReviewID,
			Link:        r.ReviewLink,
			Rating:      r.Rating,
			Timestamp:   r.Timestamp,
			DatetimeUTC: r.DatetimeUTC,
			Text:        r.Text,
		})
	}
	return &model.ReviewSet{PlaceID: placeID, Reviews: reviews, Raw: result.Raw}, nil
}

func (o *oscraper) PlacePhotos(ctx context.Context, placeID string) (*model.PhotoSet, error) {
	result, err := o.client.Photos(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &model.PhotoSet{PlaceID: placeID, Message: "no photos returned"}, nil
	}

	candidates := make([]model.PhotoCandidate, 0, len(result.Photos))
	for _, p := range result.Photos {
		c := model.PhotoCandidate{URL: p.PhotoURLBig, Tags: p.PhotoTags}
		if p.PhotoDate != "" {
			if ts, err := time.Parse(outscraper.PhotoDateLayout, p.PhotoDate); err == nil {
				c.CapturedAt = ts
			}
		}
		candidates = append(candidates, c)
	}

	set := &model.PhotoSet{
		PlaceID: placeID,
		URLs:    photos.Select(candidates, o.maxPhotos),
		Raw:     result.Raw,
	}
	if len(set.URLs) == 0 {
		set.Message = "no usable photos returned"
	}
	return set, nil
}

func (o *oscraper) IsOperational(ctx context.Context, placeID string) (bool, error) {
	place, err := o.lookup(ctx, placeID)
	if err != nil {
		// Fail open: only positive evidence marks a place closed.
		logSectionFailure("business status", placeID, err)
		return true, nil
	}
	return place.BusinessStatus != closedPermanently, nil
}

func (o *oscraper) AllPlaceData(ctx context.Context, placeID, placeName string, skipPhotos bool) (*model.PlaceSnapshot, error) {
	return assembleSnapshot(ctx, o, placeID, placeName, skipPhotos)
}

func (o *oscraper) lookup(ctx context.Context, placeID string) (*outscraper.Place, error) {
	results, err := o.client.Search(ctx, placeID, 1, "")
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, eris.Errorf("outscraper: no result for place id %s", placeID)
	}
	return &results[0], nil
}

// purchaseFromPriceRange reads Google's price range string ("$", "$$", ...)
// as scraped by Outscraper. Any real price range means purchases are
// expected there.
func purchaseFromPriceRange(priceRange string) model.PurchaseRequired {
	pr := strings.TrimSpace(priceRange)
	if pr == "" || pr == "$0" || strings.EqualFold(pr, "None") {
		return model.PurchaseUnsure
	}
	return model.PurchaseYes
}

// parkingFromAbout derives parking tags from the scraped About section,
// whose Parking group holds flags like "Free parking lot" or "Paid street
// parking".
func parkingFromAbout(about map[string]map[string]bool) []string {
	group, ok := about["Parking"]
	if !ok || len(group) == 0 {
		return []string{model.ParkingUnsure}
	}

	var free, paid, lot, garage, street, metered bool
	for option, enabled := range group {
		if !enabled {
			continue
		}
		opt := strings.ToLower(option)
		isFree := strings.Contains(opt, "free")
		isPaid := strings.Contains(opt, "paid")
		free = free || isFree
		paid = paid || isPaid
		if strings.Contains(opt, "lot") {
			lot = true
		}
		if strings.Contains(opt, "garage") {
			garage = true
		}
		if strings.Contains(opt, "street") {
			street = true
			if isPaid {
				metered = true
			}
		}
	}

	var tags []string
	switch {
	case free:
		tags = append(tags, model.ParkingFree)
	case paid:
		tags = append(tags, model.ParkingPaid)
	default:
		return []string{model.ParkingUnsure}
	}
	if lot {
		tags = append(tags, model.ParkingLot)
	}
	if garage {
		tags = append(tags, model.ParkingGarage)
	}
	if street {
		tags = append(tags, model.ParkingStreet)
	}
	if metered {
		tags = append(tags, model.ParkingMetered)
	}
	return tags
}
