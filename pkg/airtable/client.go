// Package airtable wraps the Airtable REST API for one base and table.
//
// Airtable allows 5 requests per second per base, and bursts of writes are
// the usual way to trip it. Mutating calls are throttled to 1 req/s through
// a rate limiter; reads go straight through.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// Record field names used for lookups.
const (
	FieldPlaceName = "Place"
	FieldPlaceID   = "Google Maps Place Id"
)

// Record is one Airtable record.
type Record struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

// StringField returns the named field as a trimmed string, or "" when the
// field is absent or not a string.
func (r *Record) StringField(name string) string {
	v, ok := r.Fields[name]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// HasAttachments reports whether the named attachment field holds at least
// one item.
func (r *Record) HasAttachments(name string) bool {
	v, ok := r.Fields[name]
	if !ok {
		return false
	}
	items, ok := v.([]any)
	return ok && len(items) > 0
}

// AttachmentURLs returns the URLs of the named attachment field, in stored
// order. Items without a url entry are dropped.
func (r *Record) AttachmentURLs(name string) []string {
	items, ok := r.Fields[name].([]any)
	if !ok {
		return nil
	}
	var urls []string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if u, ok := m["url"].(string); ok && u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Client performs Airtable operations against a single base and table.
type Client interface {
	// ListRecords returns all records, optionally restricted to a view,
	// following pagination.
	ListRecords(ctx context.Context, view string) ([]Record, error)
	// GetRecord finds the record whose field exactly matches value. It
	// returns nil when zero or more than one record matches; a lookup that
	// cannot name a single record is treated as no match.
	GetRecord(ctx context.Context, field, value string) (*Record, error)
	// GetRecordByID fetches one record by its record ID.
	GetRecordByID(ctx context.Context, recordID string) (*Record, error)
	// UpdateRecord patches the given fields on one record.
	UpdateRecord(ctx context.Context, recordID string, fields map[string]any) (*Record, error)
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

// WithWriteRateLimit overrides the default write throttle (1 req/s).
func WithWriteRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	token   string
	baseID  string
	table   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Airtable client for one base and table.
func NewClient(token, baseID, table string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseID:  baseID,
		table:   table,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(1, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

func (c *httpClient) ListRecords(ctx context.Context, view string) ([]Record, error) {
	var all []Record
	offset := ""
	for {
		q := url.Values{}
		if view != "" {
			q.Set("view", view)
		}
		q.Set("sort[0][field]", "Created Time")
		q.Set("sort[0][direction]", "desc")
		if offset != "" {
			q.Set("offset", offset)
		}

		respBody, err := c.do(ctx, http.MethodGet, c.tableURL()+"?"+q.Encode(), nil, false)
		if err != nil {
			return nil, err
		}

		var page listResponse
		if err := json.Unmarshal(respBody, &page); err != nil {
			return nil, eris.Wrap(err, "airtable: unmarshal list response")
		}
		all = append(all, page.Records...)
		if page.Offset == "" {
			return all, nil
		}
		offset = page.Offset
	}
}

func (c *httpClient) GetRecord(ctx context.Context, field, value string) (*Record, error) {
	formula := fmt.Sprintf("{%s} = '%s'", field, strings.ReplaceAll(value, "'", "\\'"))
	q := url.Values{"filterByFormula": {formula}}

	respBody, err := c.do(ctx, http.MethodGet, c.tableURL()+"?"+q.Encode(), nil, false)
	if err != nil {
		return nil, err
	}

	var page listResponse
	if err := json.Unmarshal(respBody, &page); err != nil {
		return nil, eris.Wrap(err, "airtable: unmarshal lookup response")
	}
	if len(page.Records) != 1 {
		return nil, nil
	}
	return &page.Records[0], nil
}

func (c *httpClient) GetRecordByID(ctx context.Context, recordID string) (*Record, error) {
	respBody, err := c.do(ctx, http.MethodGet, c.tableURL()+"/"+recordID, nil, false)
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(respBody, &record); err != nil {
		return nil, eris.Wrap(err, "airtable: unmarshal record")
	}
	return &record, nil
}

func (c *httpClient) UpdateRecord(ctx context.Context, recordID string, fields map[string]any) (*Record, error) {
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return nil, eris.Wrap(err, "airtable: marshal update payload")
	}

	respBody, err := c.do(ctx, http.MethodPatch, c.tableURL()+"/"+recordID, body, true)
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(respBody, &record); err != nil {
		return nil, eris.Wrap(err, "airtable: unmarshal record")
	}
	return &record, nil
}

func (c *httpClient) tableURL() string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(c.table))
}

func (c *httpClient) do(ctx context.Context, method, u string, body []byte, mutating bool) ([]byte, error) {
	if mutating && c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "airtable: rate limit")
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("airtable: %s %s", method, u))
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "airtable: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("airtable: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
