// Package outscraper wraps the Outscraper API endpoints for Google Maps
// place search, reviews, photos, and account balance.
//
// Outscraper is a metered scraping service; every data call costs money.
// Callers are expected to gate construction of anything that uses this
// client on Balance (see internal/provider).
package outscraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://api.outscraper.cloud"

	defaultLanguage = "en"
	defaultRegion   = "US"
)

// Client performs Outscraper API operations.
type Client interface {
	// Search runs a Google Maps search query (a place name or a place ID)
	// and returns the first result set.
	Search(ctx context.Context, query string, limit int, coordinates string) ([]Place, error)
	// Reviews fetches up to reviewsLimit reviews for a place, newest first.
	Reviews(ctx context.Context, placeID string, reviewsLimit int) (*ReviewsResult, error)
	// Photos fetches the raw photo inventory for a place.
	Photos(ctx context.Context, placeID string) (*PhotosResult, error)
	// Balance returns the account's remaining balance in USD.
	Balance(ctx context.Context) (float64, error)
}

// Place is one Google Maps place as scraped by Outscraper. Raw preserves the
// verbatim record.
type Place struct {
	Name           string                     `json:"name"`
	PlaceID        string                     `json:"place_id"`
	CID            string                     `json:"cid"`
	Site           string                     `json:"site"`
	FullAddress    string                     `json:"full_address"`
	Description    string                     `json:"description"`
	Range          string                     `json:"range"`
	Latitude       *float64                   `json:"latitude"`
	Longitude      *float64                   `json:"longitude"`
	BusinessStatus string                     `json:"business_status"`
	About          map[string]map[string]bool `json:"about"`
	Raw            json.RawMessage            `json:"-"`
}

// Review is one scraped review.
type Review struct {
	ReviewID    string  `json:"review_id"`
	ReviewLink  string  `json:"review_link"`
	Rating      float64 `json:"review_rating"`
	Timestamp   int64   `json:"review_timestamp"`
	DatetimeUTC string  `json:"review_datetime_utc"`
	Text        string  `json:"review_text"`
}

// ReviewsResult is the reviews payload for one place.
type ReviewsResult struct {
	Name    string          `json:"name"`
	PlaceID string          `json:"place_id"`
	Reviews []Review        `json:"reviews_data"`
	Raw     json.RawMessage `json:"-"`
}

// Photo is one scraped photo record. PhotoDate uses the provider's
// "MM/DD/YYYY HH:MM:SS" format.
type Photo struct {
	PhotoURLBig string   `json:"photo_url_big"`
	PhotoDate   string   `json:"photo_date"`
	PhotoTags   []string `json:"photo_tags"`
}

// PhotoDateLayout parses Photo.PhotoDate.
const PhotoDateLayout = "01/02/2006 15:04:05"

// PhotosResult is the photo payload for one place.
type PhotosResult struct {
	Name    string          `json:"name"`
	PlaceID string          `json:"place_id"`
	Photos  []Photo         `json:"photos_data"`
	Raw     json.RawMessage `json:"-"`
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

// NewClient creates an Outscraper API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			// Synchronous Outscraper requests block until the scrape finishes.
			Timeout: 120 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, limit int, coordinates string) ([]Place, error) {
	q := url.Values{
		"query":    {query},
		"limit":    {strconv.Itoa(limit)},
		"language": {defaultLanguage},
		"region":   {defaultRegion},
		"async":    {"false"},
	}
	if coordinates != "" {
		q.Set("coordinates", coordinates)
	}

	respBody, err := c.get(ctx, "/maps/search-v3", q)
	if err != nil {
		return nil, err
	}

	// The search endpoint nests results one level per query.
	var env struct {
		Data [][]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, eris.Wrap(err, "outscraper: unmarshal search response")
	}
	if len(env.Data) == 0 {
		return nil, nil
	}

	places := make([]Place, 0, len(env.Data[0]))
	for _, raw := range env.Data[0] {
		var p Place
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, eris.Wrap(err, "outscraper: unmarshal place")
		}
		p.Raw = raw
		places = append(places, p)
	}
	return places, nil
}

func (c *httpClient) Reviews(ctx context.Context, placeID string, reviewsLimit int) (*ReviewsResult, error) {
	q := url.Values{
		"query":        {placeID},
		"limit":        {"1"},
		"reviewsLimit": {strconv.Itoa(reviewsLimit)},
		"sort":         {"newest"},
		"ignoreEmpty":  {"true"},
		"language":     {defaultLanguage},
		"async":        {"false"},
	}

	respBody, err := c.get(ctx, "/maps/reviews-v3", q)
	if err != nil {
		return nil, err
	}

	var env struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, eris.Wrap(err, "outscraper: unmarshal reviews response")
	}
	if len(env.Data) == 0 {
		return nil, nil
	}

	var result ReviewsResult
	if err := json.Unmarshal(env.Data[0], &result); err != nil {
		return nil, eris.Wrap(err, "outscraper: unmarshal reviews result")
	}
	result.Raw = env.Data[0]
	return &result, nil
}

func (c *httpClient) Photos(ctx context.Context, placeID string) (*PhotosResult, error) {
	q := url.Values{
		"query":    {placeID},
		"limit":    {"1"},
		"language": {defaultLanguage},
		"region":   {defaultRegion},
		"async":    {"false"},
	}

	respBody, err := c.get(ctx, "/maps/photos-v3", q)
	if err != nil {
		return nil, err
	}

	var env struct {
		Data [][]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, eris.Wrap(err, "outscraper: unmarshal photos response")
	}
	if len(env.Data) == 0 || len(env.Data[0]) == 0 {
		return nil, nil
	}

	var result PhotosResult
	if err := json.Unmarshal(env.Data[0][0], &result); err != nil {
		return nil, eris.Wrap(err, "outscraper: unmarshal photos result")
	}
	result.Raw = env.Data[0][0]
	return &result, nil
}

func (c *httpClient) Balance(ctx context.Context) (float64, error) {
	respBody, err := c.get(ctx, "/profile/balance", nil)
	if err != nil {
		return 0, err
	}

	var result struct {
		Balance *float64 `json:"balance"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return 0, eris.Wrap(err, "outscraper: unmarshal balance response")
	}
	if result.Balance == nil {
		return 0, eris.New("outscraper: balance field missing in response")
	}
	return *result.Balance, nil
}

func (c *httpClient) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "outscraper: create request")
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("outscraper: get %s", path))
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "outscraper: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("outscraper: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
