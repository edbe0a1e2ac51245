package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListRecords_Paginated(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appBase123/Charlotte%20Third%20Places", r.URL.EscapedPath())
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "Created Time", r.URL.Query().Get("sort[0][field]"))
		assert.Equal(t, "desc", r.URL.Query().Get("sort[0][direction]"))
		assert.Equal(t, "Production", r.URL.Query().Get("view"))

		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			assert.Empty(t, r.URL.Query().Get("offset"))
			w.Write([]byte(`{"records": [{"id": "rec1", "fields": {"Place": "Amelie's"}}], "offset": "next"}`))
			return
		}
		assert.Equal(t, "next", r.URL.Query().Get("offset"))
		w.Write([]byte(`{"records": [{"id": "rec2", "fields": {"Place": "Not Just Coffee"}}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "appBase123", "Charlotte Third Places", WithBaseURL(srv.URL))
	got, err := client.ListRecords(context.Background(), "Production")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "rec1", got[0].ID)
	assert.Equal(t, "Not Just Coffee", got[1].StringField("Place"))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetRecord_SingleMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "{Google Maps Place Id} = 'ChIJtest'", r.URL.Query().Get("filterByFormula"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records": [{"id": "rec1", "fields": {"Place": "Optimist Hall", "Google Maps Place Id": "ChIJtest"}}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "appBase123", "Places", WithBaseURL(srv.URL))
	got, err := client.GetRecord(context.Background(), FieldPlaceID, "ChIJtest")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rec1", got.ID)
	assert.Equal(t, "Optimist Hall", got.StringField(FieldPlaceName))
}

func TestGetRecord_EscapesQuotes(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `{Place} = 'Amelie\'s French Bakery'`, r.URL.Query().Get("filterByFormula"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records": [{"id": "rec9", "fields": {}}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "appBase123", "Places", WithBaseURL(srv.URL))
	got, err := client.GetRecord(context.Background(), FieldPlaceName, "Amelie's French Bakery")

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "rec9", got.ID)
}

func TestGetRecord_NoMatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records": []}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "appBase123", "Places", WithBaseURL(srv.URL))
	got, err := client.GetRecord(context.Background(), FieldPlaceName, "Nowhere Cafe")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRecord_MultipleMatches(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records": [{"id": "rec1", "fields": {}}, {"id": "rec2", "fields": {}}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "appBase123", "Places", WithBaseURL(srv.URL))
	got, err := client.GetRecord(context.Background(), FieldPlaceName, "Duplicated Name")

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetRecordByID_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/appBase123/Places/rec42", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "rec42", "fields": {"Place": "Optimist Hall"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "appBase123", "Places", WithBaseURL(srv.URL))
	got, err := client.GetRecordByID(context.Background(), "rec42")

	require.NoError(t, err)
	assert.Equal(t, "rec42", got.ID)
	assert.Equal(t, "Optimist Hall", got.StringField("Place"))
}

func TestGetRecordByID_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": "NOT_FOUND"}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "appBase123", "Places", WithBaseURL(srv.URL))
	_, err := client.GetRecordByID(context.Background(), "recMissing")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestUpdateRecord_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/appBase123/Places/rec1", r.URL.Path)

		var payload map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "https://newsite.com", payload["fields"]["Website"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "rec1", "fields": {"Website": "https://newsite.com"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "appBase123", "Places", WithBaseURL(srv.URL))
	got, err := client.UpdateRecord(context.Background(), "rec1", map[string]any{"Website": "https://newsite.com"})

	require.NoError(t, err)
	assert.Equal(t, "https://newsite.com", got.StringField("Website"))
}

func TestUpdateRecord_Throttled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id": "rec1", "fields": {}}`))
	}))
	defer srv.Close()

	// 2 rps keeps the test fast; the second write must wait ~500ms.
	client := NewClient("test-token", "appBase123", "Places", WithBaseURL(srv.URL), WithWriteRateLimit(2))

	start := time.Now()
	for range 2 {
		_, err := client.UpdateRecord(context.Background(), "rec1", map[string]any{"Website": "x"})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestUpdateRecord_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": {"type": "INVALID_VALUE_FOR_COLUMN"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "appBase123", "Places", WithBaseURL(srv.URL))
	_, err := client.UpdateRecord(context.Background(), "rec1", map[string]any{"Latitude": "not-a-number"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestRecord_StringField(t *testing.T) {
	t.Parallel()

	rec := Record{Fields: map[string]any{
		"Place":    "  Optimist Hall  ",
		"Latitude": 35.23,
	}}

	assert.Equal(t, "Optimist Hall", rec.StringField("Place"))
	assert.Empty(t, rec.StringField("Latitude"))
	assert.Empty(t, rec.StringField("Missing"))
}

func TestRecord_HasAttachments(t *testing.T) {
	t.Parallel()

	rec := Record{Fields: map[string]any{
		"Photos": []any{map[string]any{"url": "https://example.com/p.jpg"}},
		"Empty":  []any{},
		"Text":   "not attachments",
	}}

	assert.True(t, rec.HasAttachments("Photos"))
	assert.False(t, rec.HasAttachments("Empty"))
	assert.False(t, rec.HasAttachments("Text"))
	assert.False(t, rec.HasAttachments("Missing"))
}

func TestRecord_AttachmentURLs(t *testing.T) {
	t.Parallel()

	rec := Record{Fields: map[string]any{
		"Photos": []any{
			map[string]any{"url": "https://example.com/a.jpg", "id": "att1"},
			map[string]any{"id": "att2"}, // no url
			map[string]any{"url": "https://example.com/b.jpg"},
		},
		"Text": "not attachments",
	}}

	assert.Equal(t, []string{"https://example.com/a.jpg", "https://example.com/b.jpg"}, rec.AttachmentURLs("Photos"))
	assert.Nil(t, rec.AttachmentURLs("Text"))
	assert.Nil(t, rec.AttachmentURLs("Missing"))
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient("tok", "appBase", "Places")
	hc := c.(*httpClient)
	assert.Equal(t, "https://api.airtable.com/v0", hc.baseURL)
	assert.NotNil(t, hc.limiter)
	assert.NotNil(t, hc.http)
}
