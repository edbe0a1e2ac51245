// Package places wraps the Google Places API (New) v1 endpoints used for
// place lookup, details, validation, and photo media resolution.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

// DetailsFieldMask is the field set requested for full place details.
const DetailsFieldMask = "id,name,displayName,googleMapsUri,websiteUri," +
	"formattedAddress,editorialSummary,addressComponents,parkingOptions," +
	"priceLevel,paymentOptions,primaryType,types,outdoorSeating,location," +
	"businessStatus"

// Client performs Google Places API operations.
type Client interface {
	TextSearch(ctx context.Context, query string, bias *LocationBias) (*TextSearchResponse, error)
	GetPlace(ctx context.Context, placeID, fieldMask string) (*Place, error)
	ValidateID(ctx context.Context, placeID string) (bool, error)
	PhotoMedia(ctx context.Context, photoName string) (*PhotoMedia, error)
}

// LocationBias biases text search toward a circle around a point.
type LocationBias struct {
	Latitude  float64
	Longitude float64
	RadiusM   float64
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place is a place resource. Raw preserves the verbatim response body for
// audit and cache storage.
type Place struct {
	ID               string          `json:"id"`
	DisplayName      DisplayName     `json:"displayName"`
	GoogleMapsURI    string          `json:"googleMapsUri"`
	WebsiteURI       string          `json:"websiteUri"`
	FormattedAddress string          `json:"formattedAddress"`
	EditorialSummary DisplayName     `json:"editorialSummary"`
	ParkingOptions   *ParkingOptions `json:"parkingOptions"`
	PriceLevel       string          `json:"priceLevel"`
	Location         *LatLng         `json:"location"`
	BusinessStatus   string          `json:"businessStatus"`
	Photos           []Photo         `json:"photos"`
	Raw              json.RawMessage `json:"-"`
}

// DisplayName holds localized text.
type DisplayName struct {
	Text string `json:"text"`
}

// ParkingOptions mirrors the API's parking booleans.
type ParkingOptions struct {
	FreeParkingLot    bool `json:"freeParkingLot"`
	PaidParkingLot    bool `json:"paidParkingLot"`
	FreeStreetParking bool `json:"freeStreetParking"`
	PaidStreetParking bool `json:"paidStreetParking"`
	FreeGarageParking bool `json:"freeGarageParking"`
	PaidGarageParking bool `json:"paidGarageParking"`
	ValetParking      bool `json:"valetParking"`
}

// LatLng is a coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Photo is a photo resource reference.
type Photo struct {
	Name string `json:"name"`
}

// PhotoMedia is the resolved media info for one photo resource.
type PhotoMedia struct {
	Name     string `json:"name"`
	PhotoURI string `json:"photoUri"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery    string `json:"textQuery"`
	LanguageCode string `json:"languageCode"`
	LocationBias *struct {
		Circle struct {
			Center LatLng  `json:"center"`
			Radius float64 `json:"radius"`
		} `json:"circle"`
	} `json:"locationBias,omitempty"`
}

func (c *httpClient) TextSearch(ctx context.Context, query string, bias *LocationBias) (*TextSearchResponse, error) {
	reqBody := textSearchRequest{TextQuery: query, LanguageCode: "en"}
	if bias != nil {
		reqBody.LocationBias = &struct {
			Circle struct {
				Center LatLng  `json:"center"`
				Radius float64 `json:"radius"`
			} `json:"circle"`
		}{}
		reqBody.LocationBias.Circle.Center = LatLng{Latitude: bias.Latitude, Longitude: bias.Longitude}
		reqBody.LocationBias.Circle.Radius = bias.RadiusM
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", "places.id,places.displayName")

	respBody, _, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var result TextSearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal search response")
	}
	return &result, nil
}

func (c *httpClient) GetPlace(ctx context.Context, placeID, fieldMask string) (*Place, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/places/%s?languageCode=en", c.baseURL, url.PathEscape(placeID)), nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	respBody, _, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var place Place
	if err := json.Unmarshal(respBody, &place); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal place")
	}
	place.Raw = respBody
	return &place, nil
}

// ValidateID checks whether a place ID is still current using the no-cost
// id-refresh request (field mask restricted to "id"). A 404 or 400 means the
// ID is obsolete or malformed, not a transport failure.
func (c *httpClient) ValidateID(ctx context.Context, placeID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/places/%s?fields=id&languageCode=en", c.baseURL, url.PathEscape(placeID)), nil)
	if err != nil {
		return false, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", "id")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, eris.Wrap(err, "places: read response")
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var result struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return false, eris.Wrap(err, "places: unmarshal validate response")
		}
		return result.ID == placeID, nil
	case http.StatusNotFound, http.StatusBadRequest:
		return false, nil
	default:
		return false, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
}

func (c *httpClient) PhotoMedia(ctx context.Context, photoName string) (*PhotoMedia, error) {
	q := url.Values{
		"maxHeightPx":      {"4800"},
		"maxWidthPx":       {"4800"},
		"key":              {c.apiKey},
		"skipHttpRedirect": {"true"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s/media?%s", c.baseURL, photoName, q.Encode()), nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}

	respBody, _, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var media PhotoMedia
	if err := json.Unmarshal(respBody, &media); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal photo media")
	}
	return &media, nil
}

func (c *httpClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "places: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, resp.StatusCode, nil
}
