package provider

import (
	"context"

	"github.com/segunak/places-cli/internal/model"
)

// assembleSnapshot builds the combined snapshot for one place. Details are
// the backbone; a place with no details is an error. Review and photo
// fetches degrade to empty sections so one flaky endpoint doesn't void the
// whole snapshot.
func assembleSnapshot(ctx context.Context, p Provider, placeID, placeName string, skipPhotos bool) (*model.PlaceSnapshot, error) {
	details, err := p.PlaceDetails(ctx, placeID)
	if err != nil {
		return nil, err
	}

	name := details.PlaceName
	if name == "" {
		name = placeName
	}
	snap := &model.PlaceSnapshot{
		PlaceID:    placeID,
		PlaceName:  name,
		Details:    *details,
		DataSource: string(p.Kind()),
	}

	reviews, err := p.PlaceReviews(ctx, placeID)
	if err != nil {
		logSectionFailure("reviews", placeID, err)
		snap.Reviews = model.ReviewSet{
			PlaceID: placeID,
			Message: "reviews unavailable: " + err.Error(),
			Reviews: []model.Review{},
		}
	} else {
		snap.Reviews = *reviews
	}

	if skipPhotos {
		// Photo scrapes are metered; the caller already has photos and
		// back-fills them before persisting.
		snap.Photos = model.PhotoSet{
			PlaceID: placeID,
			Message: "photo retrieval skipped",
		}
		return snap, nil
	}

	photoSet, err := p.PlacePhotos(ctx, placeID)
	if err != nil {
		logSectionFailure("photos", placeID, err)
		snap.Photos = model.PhotoSet{
			PlaceID: placeID,
			Message: "photos unavailable: " + err.Error(),
		}
	} else {
		snap.Photos = *photoSet
	}

	return snap, nil
}
