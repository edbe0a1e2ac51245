package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segunak/places-cli/internal/config"
	"github.com/segunak/places-cli/internal/model"
	"github.com/segunak/places-cli/pkg/outscraper"
	"github.com/segunak/places-cli/pkg/places"
)

func TestParseKind(t *testing.T) {
	t.Parallel()

	got, err := ParseKind("google")
	require.NoError(t, err)
	assert.Equal(t, KindGoogle, got)

	got, err = ParseKind("  Outscraper ")
	require.NoError(t, err)
	assert.Equal(t, KindOutscraper, got)

	_, err = ParseKind("yelp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestPickMatch(t *testing.T) {
	t.Parallel()

	results := []searchResult{
		{id: "id-first", name: "Not Just Coffee - Dilworth"},
		{id: "id-exact", name: "Not Just Coffee"},
	}

	// Exact normalized name match beats position.
	id, ok := pickMatch("not just  COFFEE", results)
	require.True(t, ok)
	assert.Equal(t, "id-exact", id)

	// No exact match falls back to the first result.
	id, ok = pickMatch("Something Else", results)
	require.True(t, ok)
	assert.Equal(t, "id-first", id)

	_, ok = pickMatch("anything", nil)
	assert.False(t, ok)

	_, ok = pickMatch("anything", []searchResult{{id: "", name: "No ID"}})
	assert.False(t, ok)
}

func TestCleanAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips usa and keeps state", "2424 N Davidson St, Charlotte, NC 28205, USA", "2424 N Davidson St, Charlotte, NC 28205"},
		{"strips united states", "100 Main St, Charlotte, NC 28202, United States", "100 Main St, Charlotte, NC 28202"},
		{"title cases shouting", "1115 N BREVARD ST, CHARLOTTE, NC 28206, USA", "1115 N Brevard St, Charlotte, NC 28206"},
		{"state at end", "Some Place, Charlotte, nc", "Some Place, Charlotte, NC"},
		{"no country suffix", "504 E 15th St, Charlotte, NC 28206", "504 E 15th St, Charlotte, NC 28206"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, cleanAddress(tt.in))
		})
	}
}

func TestMapsURLFromCID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://maps.google.com/?cid=123", mapsURLFromCID("123"))
	assert.Empty(t, mapsURLFromCID(""))
}

func TestPurchaseFromPriceLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.PurchaseNo, purchaseFromPriceLevel("PRICE_LEVEL_FREE"))
	assert.Equal(t, model.PurchaseYes, purchaseFromPriceLevel("PRICE_LEVEL_INEXPENSIVE"))
	assert.Equal(t, model.PurchaseYes, purchaseFromPriceLevel("PRICE_LEVEL_VERY_EXPENSIVE"))
	assert.Equal(t, model.PurchaseUnsure, purchaseFromPriceLevel("PRICE_LEVEL_UNSPECIFIED"))
	assert.Equal(t, model.PurchaseUnsure, purchaseFromPriceLevel(""))
}

func TestParkingFromOptions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{model.ParkingUnsure}, parkingFromOptions(nil))
	assert.Equal(t, []string{model.ParkingUnsure}, parkingFromOptions(&places.ParkingOptions{}))

	got := parkingFromOptions(&places.ParkingOptions{FreeParkingLot: true})
	assert.Equal(t, []string{model.ParkingFree, model.ParkingLot}, got)

	// Free beats paid for the cost verdict.
	got = parkingFromOptions(&places.ParkingOptions{FreeStreetParking: true, PaidGarageParking: true})
	assert.Equal(t, []string{model.ParkingFree, model.ParkingGarage, model.ParkingStreet}, got)

	got = parkingFromOptions(&places.ParkingOptions{PaidStreetParking: true})
	assert.Equal(t, []string{model.ParkingPaid, model.ParkingStreet, model.ParkingMetered}, got)

	got = parkingFromOptions(&places.ParkingOptions{ValetParking: true})
	assert.Equal(t, []string{model.ParkingPaid}, got)
}

func TestPurchaseFromPriceRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.PurchaseYes, purchaseFromPriceRange("$$"))
	assert.Equal(t, model.PurchaseUnsure, purchaseFromPriceRange(""))
	assert.Equal(t, model.PurchaseUnsure, purchaseFromPriceRange("$0"))
	assert.Equal(t, model.PurchaseUnsure, purchaseFromPriceRange("None"))
	assert.Equal(t, model.PurchaseUnsure, purchaseFromPriceRange("  "))
}

func TestParkingFromAbout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{model.ParkingUnsure}, parkingFromAbout(nil))
	assert.Equal(t, []string{model.ParkingUnsure}, parkingFromAbout(map[string]map[string]bool{
		"Accessibility": {"Wheelchair accessible entrance": true},
	}))

	got := parkingFromAbout(map[string]map[string]bool{
		"Parking": {"Free parking lot": true, "Paid street parking": false},
	})
	assert.Equal(t, []string{model.ParkingFree, model.ParkingLot}, got)

	got = parkingFromAbout(map[string]map[string]bool{
		"Parking": {"Paid street parking": true},
	})
	assert.Equal(t, []string{model.ParkingPaid, model.ParkingStreet, model.ParkingMetered}, got)
}

// fakeGoogle is an in-memory places.Client.
type fakeGoogle struct {
	searchResp  *places.TextSearchResponse
	searchErr   error
	place       *places.Place
	placeErr    error
	validID     bool
	validErr    error
	mediaByName map[string]string
}

func (f *fakeGoogle) TextSearch(context.Context, string, *places.LocationBias) (*places.TextSearchResponse, error) {
	return f.searchResp, f.searchErr
}

func (f *fakeGoogle) GetPlace(context.Context, string, string) (*places.Place, error) {
	return f.place, f.placeErr
}

func (f *fakeGoogle) ValidateID(context.Context, string) (bool, error) {
	return f.validID, f.validErr
}

func (f *fakeGoogle) PhotoMedia(_ context.Context, name string) (*places.PhotoMedia, error) {
	uri, ok := f.mediaByName[name]
	if !ok {
		return nil, assert.AnError
	}
	return &places.PhotoMedia{Name: name, PhotoURI: uri}, nil
}

func TestGoogle_FindPlaceID(t *testing.T) {
	t.Parallel()

	g := newGoogle(Deps{Google: &fakeGoogle{searchResp: &places.TextSearchResponse{
		Places: []places.Place{
			{ID: "id1", DisplayName: places.DisplayName{Text: "Other Cafe"}},
			{ID: "id2", DisplayName: places.DisplayName{Text: "Not Just Coffee"}},
		},
	}}, MaxPhotos: 30})

	id, err := g.FindPlaceID(context.Background(), "Not Just Coffee")
	require.NoError(t, err)
	assert.Equal(t, "id2", id)
}

func TestGoogle_FindPlaceID_NoResults(t *testing.T) {
	t.Parallel()

	g := newGoogle(Deps{Google: &fakeGoogle{searchResp: &places.TextSearchResponse{}}, MaxPhotos: 30})

	_, err := g.FindPlaceID(context.Background(), "Ghost Cafe")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPlaceID)
}

func TestGoogle_ResolvePlaceID_ValidKeepsID(t *testing.T) {
	t.Parallel()

	g := newGoogle(Deps{Google: &fakeGoogle{validID: true}, MaxPhotos: 30})

	id, err := g.ResolvePlaceID(context.Background(), "Optimist Hall", "ChIJknown")
	require.NoError(t, err)
	assert.Equal(t, "ChIJknown", id)
}

func TestGoogle_ResolvePlaceID_StaleIDSearches(t *testing.T) {
	t.Parallel()

	g := newGoogle(Deps{Google: &fakeGoogle{
		validID: false,
		searchResp: &places.TextSearchResponse{Places: []places.Place{
			{ID: "ChIJfresh", DisplayName: places.DisplayName{Text: "Optimist Hall"}},
		}},
	}, MaxPhotos: 30})

	id, err := g.ResolvePlaceID(context.Background(), "Optimist Hall", "ChIJstale")
	require.NoError(t, err)
	assert.Equal(t, "ChIJfresh", id)
}

func TestGoogle_ResolvePlaceID_NoNameNoID(t *testing.T) {
	t.Parallel()

	g := newGoogle(Deps{Google: &fakeGoogle{}, MaxPhotos: 30})

	_, err := g.ResolvePlaceID(context.Background(), "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPlaceID)
}

func TestGoogle_PlaceDetails(t *testing.T) {
	t.Parallel()

	g := newGoogle(Deps{Google: &fakeGoogle{place: &places.Place{
		ID:               "ChIJtest",
		DisplayName:      places.DisplayName{Text: "Amelie's French Bakery"},
		GoogleMapsURI:    "https://maps.google.com/?cid=42",
		WebsiteURI:       "https://www.ameliesfrenchbakery.com/",
		FormattedAddress: "2424 N Davidson St, Charlotte, NC 28205, USA",
		EditorialSummary: places.DisplayName{Text: "French bakery and cafe"},
		PriceLevel:       "PRICE_LEVEL_MODERATE",
		ParkingOptions:   &places.ParkingOptions{FreeParkingLot: true},
		Location:         &places.LatLng{Latitude: 35.2414, Longitude: -80.8124},
		Raw:              []byte(`{"id":"ChIJtest"}`),
	}}, MaxPhotos: 30})

	d, err := g.PlaceDetails(context.Background(), "ChIJtest")
	require.NoError(t, err)

	assert.Equal(t, "Amelie's French Bakery", d.PlaceName)
	assert.Equal(t, "2424 N Davidson St, Charlotte, NC 28205", d.Address)
	assert.Equal(t, model.PurchaseYes, d.PurchaseRequired)
	assert.Equal(t, []string{model.ParkingFree, model.ParkingLot}, d.Parking)
	require.NotNil(t, d.Latitude)
	assert.InDelta(t, 35.2414, *d.Latitude, 0.0001)
	assert.NotEmpty(t, d.Raw)
}

func TestGoogle_PlacePhotos_SkipsFailedMedia(t *testing.T) {
	t.Parallel()

	g := newGoogle(Deps{Google: &fakeGoogle{
		place: &places.Place{
			ID: "ChIJtest",
			Photos: []places.Photo{
				{Name: "places/ChIJtest/photos/a"},
				{Name: "places/ChIJtest/photos/broken"},
			},
		},
		mediaByName: map[string]string{
			"places/ChIJtest/photos/a": "https://lh3.googleusercontent.com/p/a",
		},
	}, MaxPhotos: 30})

	set, err := g.PlacePhotos(context.Background(), "ChIJtest")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://lh3.googleusercontent.com/p/a"}, set.URLs)
}

func TestGoogle_IsOperational(t *testing.T) {
	t.Parallel()

	open := newGoogle(Deps{Google: &fakeGoogle{place: &places.Place{BusinessStatus: "OPERATIONAL"}}})
	ok, err := open.IsOperational(context.Background(), "ChIJtest")
	require.NoError(t, err)
	assert.True(t, ok)

	closed := newGoogle(Deps{Google: &fakeGoogle{place: &places.Place{BusinessStatus: "CLOSED_PERMANENTLY"}}})
	ok, err = closed.IsOperational(context.Background(), "ChIJtest")
	require.NoError(t, err)
	assert.False(t, ok)

	// Lookup failures fail open.
	failing := newGoogle(Deps{Google: &fakeGoogle{placeErr: assert.AnError}})
	ok, err = failing.IsOperational(context.Background(), "ChIJtest")
	require.NoError(t, err)
	assert.True(t, ok)
}

// fakeOutscraper is an in-memory outscraper.Client.
type fakeOutscraper struct {
	searchResults []outscraper.Place
	searchErr     error
	reviews       *outscraper.ReviewsResult
	reviewsErr    error
	photos        *outscraper.PhotosResult
	photosErr     error
	balance       float64
	balanceErr    error
}

func (f *fakeOutscraper) Search(context.Context, string, int, string) ([]outscraper.Place, error) {
	return f.searchResults, f.searchErr
}

func (f *fakeOutscraper) Reviews(context.Context, string, int) (*outscraper.ReviewsResult, error) {
	return f.reviews, f.reviewsErr
}

func (f *fakeOutscraper) Photos(context.Context, string) (*outscraper.PhotosResult, error) {
	return f.photos, f.photosErr
}

func (f *fakeOutscraper) Balance(context.Context) (float64, error) {
	return f.balance, f.balanceErr
}

func TestNew_OutscraperBalancePreflight(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), KindOutscraper, Deps{
		Outscraper:       &fakeOutscraper{balance: 2.5},
		BalanceThreshold: 5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	p, err := New(context.Background(), KindOutscraper, Deps{
		Outscraper:       &fakeOutscraper{balance: 20},
		BalanceThreshold: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, KindOutscraper, p.Kind())
}

func TestNew_OutscraperBalanceCheckFails(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), KindOutscraper, Deps{
		Outscraper:       &fakeOutscraper{balanceErr: errors.New("api down")},
		BalanceThreshold: 5,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check outscraper balance")
}

func TestNew_UnknownKind(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Kind("yelp"), Deps{})
	require.Error(t, err)
}

func TestOutscraper_PlaceDetails(t *testing.T) {
	t.Parallel()

	lat, lng := 35.2344, -80.8301
	o := newOutscraper(Deps{Outscraper: &fakeOutscraper{searchResults: []outscraper.Place{{
		Name:        "Optimist Hall",
		PlaceID:     "ChIJopt",
		CID:         "987",
		Site:        "https://optimisthall.com/",
		FullAddress: "1115 N Brevard St, Charlotte, NC 28206, United States",
		Description: "Food hall in a former textile mill",
		Range:       "$$",
		Latitude:    &lat,
		Longitude:   &lng,
		About:       map[string]map[string]bool{"Parking": {"Free parking lot": true}},
	}}}, MaxPhotos: 30})

	d, err := o.PlaceDetails(context.Background(), "ChIJopt")
	require.NoError(t, err)

	assert.Equal(t, "Optimist Hall", d.PlaceName)
	assert.Equal(t, "https://maps.google.com/?cid=987", d.GoogleMapsURL)
	assert.Equal(t, "1115 N Brevard St, Charlotte, NC 28206", d.Address)
	assert.Equal(t, model.PurchaseYes, d.PurchaseRequired)
	assert.Equal(t, []string{model.ParkingFree, model.ParkingLot}, d.Parking)
	require.NotNil(t, d.Latitude)
	assert.InDelta(t, 35.2344, *d.Latitude, 0.0001)
}

func TestOutscraper_ValidatePlaceID_UsesGoogle(t *testing.T) {
	t.Parallel()

	// Validation rides the free Google endpoint; the billed Outscraper
	// search must never fire for it.
	scraper := &fakeOutscraper{searchErr: errors.New("billed search should not run")}

	valid := newOutscraper(Deps{Outscraper: scraper, Google: &fakeGoogle{validID: true}})
	ok, err := valid.ValidatePlaceID(context.Background(), "ChIJopt")
	require.NoError(t, err)
	assert.True(t, ok)

	stale := newOutscraper(Deps{Outscraper: scraper, Google: &fakeGoogle{validID: false}})
	ok, err = stale.ValidatePlaceID(context.Background(), "ChIJopt")
	require.NoError(t, err)
	assert.False(t, ok)

	unconfigured := newOutscraper(Deps{Outscraper: scraper})
	_, err = unconfigured.ValidatePlaceID(context.Background(), "ChIJopt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no google client")
}

func TestOutscraper_PlacePhotos_TagsAndDates(t *testing.T) {
	t.Parallel()

	o := newOutscraper(Deps{Outscraper: &fakeOutscraper{photos: &outscraper.PhotosResult{
		PlaceID: "ChIJopt",
		Photos: []outscraper.Photo{
			{PhotoURLBig: "https://p/front", PhotoDate: "01/10/2025 09:00:00", PhotoTags: []string{"front"}},
			{PhotoURLBig: "https://p/vibe", PhotoDate: "03/15/2025 10:20:00", PhotoTags: []string{"vibe"}},
			{PhotoURLBig: "https://lh3.googleusercontent.com/gps-proxy/x", PhotoTags: []string{"vibe"}},
		},
	}}, MaxPhotos: 30})

	set, err := o.PlacePhotos(context.Background(), "ChIJopt")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://p/vibe", "https://p/front"}, set.URLs)
}

func TestOutscraper_AllPlaceData_ReviewFailureDegrades(t *testing.T) {
	t.Parallel()

	o := newOutscraper(Deps{Outscraper: &fakeOutscraper{
		searchResults: []outscraper.Place{{Name: "Optimist Hall", PlaceID: "ChIJopt"}},
		reviewsErr:    errors.New("scrape timed out"),
		photos: &outscraper.PhotosResult{Photos: []outscraper.Photo{
			{PhotoURLBig: "https://p/a"},
		}},
	}, MaxPhotos: 30})

	snap, err := o.AllPlaceData(context.Background(), "ChIJopt", "Optimist Hall", false)
	require.NoError(t, err)

	assert.Equal(t, "Optimist Hall", snap.PlaceName)
	assert.Equal(t, "outscraper", snap.DataSource)
	assert.Empty(t, snap.Reviews.Reviews)
	assert.Contains(t, snap.Reviews.Message, "reviews unavailable")
	assert.Equal(t, []string{"https://p/a"}, snap.Photos.URLs)
}

func TestOutscraper_AllPlaceData_DetailsFailureFails(t *testing.T) {
	t.Parallel()

	o := newOutscraper(Deps{Outscraper: &fakeOutscraper{searchErr: errors.New("boom")}})

	_, err := o.AllPlaceData(context.Background(), "ChIJopt", "Optimist Hall", false)
	require.Error(t, err)
}

func TestOutscraper_AllPlaceData_SkipPhotos(t *testing.T) {
	t.Parallel()

	o := newOutscraper(Deps{Outscraper: &fakeOutscraper{
		searchResults: []outscraper.Place{{Name: "Optimist Hall", PlaceID: "ChIJopt"}},
		photosErr:     errors.New("metered photo scrape should not run"),
	}, MaxPhotos: 30})

	snap, err := o.AllPlaceData(context.Background(), "ChIJopt", "Optimist Hall", true)
	require.NoError(t, err)

	assert.Empty(t, snap.Photos.URLs)
	assert.Equal(t, "photo retrieval skipped", snap.Photos.Message)
}

func TestGoogle_Reviews_NotCollected(t *testing.T) {
	t.Parallel()

	g := newGoogle(Deps{Google: &fakeGoogle{}})
	set, err := g.PlaceReviews(context.Background(), "ChIJtest")
	require.NoError(t, err)
	assert.Empty(t, set.Reviews)
	assert.NotEmpty(t, set.Message)
}

func TestCoordinatesPassedToDeps(t *testing.T) {
	t.Parallel()

	o := newOutscraper(Deps{Outscraper: &fakeOutscraper{}, Location: config.LocationConfig{
		Lat: 35.23075539296459, Lng: -80.83165532446358,
	}})
	assert.Equal(t, "@35.23075539296459,-80.83165532446358,9z", o.coordinates)
}
