package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/segunak/places-cli/internal/model"
	"github.com/segunak/places-cli/internal/photos"
	"github.com/segunak/places-cli/pkg/places"
)

// google implements Provider on the Google Places API (New).
type google struct {
	client    places.Client
	bias      *places.LocationBias
	maxPhotos int
}

func newGoogle(deps Deps) *google {
	g := &google{client: deps.Google, maxPhotos: deps.MaxPhotos}
	if deps.Location.Lat != 0 || deps.Location.Lng != 0 {
		g.bias = &places.LocationBias{
			Latitude:  deps.Location.Lat,
			Longitude: deps.Location.Lng,
			RadiusM:   deps.Location.RadiusM,
		}
	}
	return g
}

func (g *google) Kind() Kind { return KindGoogle }

func (g *google) FindPlaceID(ctx context.Context, placeName string) (string, error) {
	resp, err := g.client.TextSearch(ctx, placeName, g.bias)
	if err != nil {
		return "", err
	}

	results := make([]searchResult, 0, len(resp.Places))
	for _, p := range resp.Places {
		results = append(results, searchResult{id: p.ID, name: p.DisplayName.Text})
	}
	id, ok := pickMatch(placeName, results)
	if !ok {
		return "", eris.Wrapf(ErrNoPlaceID, "google: search %q", placeName)
	}
	return id, nil
}

func (g *google) ValidatePlaceID(ctx context.Context, placeID string) (bool, error) {
	return g.client.ValidateID(ctx, placeID)
}

func (g *google) ResolvePlaceID(ctx context.Context, placeName, placeID string) (string, error) {
	return resolvePlaceID(ctx, g, placeName, placeID)
}

func (g *google) PlaceDetails(ctx context.Context, placeID string) (*model.PlaceDetails, error) {
	place, err := g.client.GetPlace(ctx, placeID, places.DetailsFieldMask)
	if err != nil {
		return nil, err
	}

	details := &model.PlaceDetails{
		PlaceName:        place.DisplayName.Text,
		PlaceID:          place.ID,
		GoogleMapsURL:    place.GoogleMapsURI,
		Website:          place.WebsiteURI,
		Address:          cleanAddress(place.FormattedAddress),
		Description:      place.EditorialSummary.Text,
		PurchaseRequired: purchaseFromPriceLevel(place.PriceLevel),
		Parking:          parkingFromOptions(place.ParkingOptions),
		Raw:              place.Raw,
	}
	if place.Location != nil {
		lat, lng := place.Location.Latitude, place.Location.Longitude
		details.Latitude, details.Longitude = &lat, &lng
	}
	return details, nil
}

// PlaceReviews returns an empty set: review text is not part of the Google
// field mask this tool pays for. Outscraper is the review source.
func (g *google) PlaceReviews(_ context.Context, placeID string) (*model.ReviewSet, error) {
	return &model.ReviewSet{
		PlaceID: placeID,
		Message: "reviews are not collected from the google provider",
		Reviews: []model.Review{},
	}, nil
}

func (g *google) PlacePhotos(ctx context.Context, placeID string) (*model.PhotoSet, error) {
	place, err := g.client.GetPlace(ctx, placeID, "id,photos")
	if err != nil {
		return nil, err
	}

	names := place.Photos
	if len(names) > g.maxPhotos {
		// Each photo costs a media call; don't resolve more than we keep.
		names = names[:g.maxPhotos]
	}

	candidates := make([]model.PhotoCandidate, 0, len(names))
	for _, p := range names {
		media, err := g.client.PhotoMedia(ctx, p.Name)
		if err != nil {
			logSectionFailure("photo media", placeID, err)
			continue
		}
		candidates = append(candidates, model.PhotoCandidate{URL: media.PhotoURI})
	}

	set := &model.PhotoSet{
		PlaceID: placeID,
		URLs:    photos.Select(candidates, g.maxPhotos),
		Raw:     place.Raw,
	}
	if len(set.URLs) == 0 {
		set.Message = "no usable photos returned"
	}
	return set, nil
}

func (g *google) IsOperational(ctx context.Context, placeID string) (bool, error) {
	place, err := g.client.GetPlace(ctx, placeID, "id,businessStatus")
	if err != nil {
		// Fail open: only positive evidence marks a place closed.
		logSectionFailure("business status", placeID, err)
		return true, nil
	}
	return place.BusinessStatus != closedPermanently, nil
}

func (g *google) AllPlaceData(ctx context.Context, placeID, placeName string, skipPhotos bool) (*model.PlaceSnapshot, error) {
	return assembleSnapshot(ctx, g, placeID, placeName, skipPhotos)
}

func purchaseFromPriceLevel(level string) model.PurchaseRequired {
	switch level {
	case "PRICE_LEVEL_FREE":
		return model.PurchaseNo
	case "PRICE_LEVEL_INEXPENSIVE", "PRICE_LEVEL_MODERATE",
		"PRICE_LEVEL_EXPENSIVE", "PRICE_LEVEL_VERY_EXPENSIVE":
		return model.PurchaseYes
	default:
		return model.PurchaseUnsure
	}
}

func parkingFromOptions(opts *places.ParkingOptions) []string {
	if opts == nil {
		return []string{model.ParkingUnsure}
	}

	free := opts.FreeParkingLot || opts.FreeStreetParking || opts.FreeGarageParking
	paid := opts.PaidParkingLot || opts.PaidStreetParking || opts.PaidGarageParking || opts.ValetParking

	var tags []string
	switch {
	case free:
		tags = append(tags, model.ParkingFree)
	case paid:
		tags = append(tags, model.ParkingPaid)
	default:
		return []string{model.ParkingUnsure}
	}

	if opts.FreeParkingLot || opts.PaidParkingLot {
		tags = append(tags, model.ParkingLot)
	}
	if opts.FreeGarageParking || opts.PaidGarageParking {
		tags = append(tags, model.ParkingGarage)
	}
	if opts.FreeStreetParking || opts.PaidStreetParking {
		tags = append(tags, model.ParkingStreet)
	}
	if opts.PaidStreetParking {
		tags = append(tags, model.ParkingMetered)
	}
	return tags
}
