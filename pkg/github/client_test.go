package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFile_Success(t *testing.T) {
	t.Parallel()

	body := `{"place_id": "ChIJtest", "place_name": "Not Just Coffee"}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/repos/segunak/third-places-data/contents/data/places/charlotte/ChIJtest.json", r.URL.Path)
		assert.Equal(t, "master", r.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"content":  base64.StdEncoding.EncodeToString([]byte(body)),
			"encoding": "base64",
			"sha":      "abc123",
		})
	}))
	defer srv.Close()

	client := NewClient("test-token", "segunak/third-places-data", "master", WithBaseURL(srv.URL))
	got, err := client.GetFile(context.Background(), "data/places/charlotte/ChIJtest.json")

	require.NoError(t, err)
	assert.True(t, got.Exists)
	assert.Equal(t, "abc123", got.SHA)
	assert.JSONEq(t, body, string(got.Content))
}

func TestGetFile_NewlineWrappedBase64(t *testing.T) {
	t.Parallel()

	encoded := base64.StdEncoding.EncodeToString([]byte(`{"k": "v"}`))
	// The API chunks base64 with embedded newlines.
	wrapped := encoded[:4] + "\n" + encoded[4:] + "\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"content": wrapped, "encoding": "base64", "sha": "s1"})
	}))
	defer srv.Close()

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	got, err := client.GetFile(context.Background(), "file.json")

	require.NoError(t, err)
	assert.JSONEq(t, `{"k": "v"}`, string(got.Content))
}

func TestGetFile_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	got, err := client.GetFile(context.Background(), "data/places/charlotte/missing.json")

	require.NoError(t, err)
	assert.False(t, got.Exists)
	assert.Nil(t, got.Content)
	assert.Empty(t, got.SHA)
}

func TestGetFile_LargeFileFallback(t *testing.T) {
	t.Parallel()

	body := `{"large": true}`

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/repos/owner/repo/contents/big.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Over-1MB responses come back with empty content and a download URL.
		json.NewEncoder(w).Encode(map[string]string{
			"content":      "",
			"encoding":     "none",
			"sha":          "bigsha",
			"download_url": srv.URL + "/raw/big.json",
		})
	})
	mux.HandleFunc("/raw/big.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	got, err := client.GetFile(context.Background(), "big.json")

	require.NoError(t, err)
	assert.True(t, got.Exists)
	assert.Equal(t, "bigsha", got.SHA)
	assert.JSONEq(t, body, string(got.Content))
}

func TestGetFile_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`boom`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	_, err := client.GetFile(context.Background(), "file.json")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestPutFile_Create(t *testing.T) {
	t.Parallel()

	content := []byte(`{"place_id": "ChIJnew"}`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/repos/owner/repo/contents/data/places/charlotte/ChIJnew.json", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Update place data for ChIJnew", payload["message"])
		assert.Equal(t, "master", payload["branch"])
		assert.NotContains(t, payload, "sha")

		decoded, err := base64.StdEncoding.DecodeString(payload["content"])
		require.NoError(t, err)
		assert.Equal(t, content, decoded)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"content": {"sha": "newsha"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	err := client.PutFile(context.Background(), "data/places/charlotte/ChIJnew.json", content, "Update place data for ChIJnew", "")

	require.NoError(t, err)
}

func TestPutFile_UpdateSendsSHA(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "oldsha", payload["sha"])

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"content": {"sha": "newsha"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	err := client.PutFile(context.Background(), "file.json", []byte(`{}`), "update", "oldsha")

	require.NoError(t, err)
}

func TestPutFile_Conflict409(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message": "is at abc but expected def"}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	err := client.PutFile(context.Background(), "file.json", []byte(`{}`), "update", "stale")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestPutFile_Conflict422StaleSHA(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "file.json does not match the expected SHA"}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	err := client.PutFile(context.Background(), "file.json", []byte(`{}`), "update", "stale")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestPutFile_Unprocessable_NotConflict(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message": "Invalid request. Branch missing."}`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	err := client.PutFile(context.Background(), "file.json", []byte(`{}`), "update", "")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestPutFile_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`bad gateway`))
	}))
	defer srv.Close()

	client := NewClient("test-token", "owner/repo", "master", WithBaseURL(srv.URL))
	err := client.PutFile(context.Background(), "file.json", []byte(`{}`), "update", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient("tok", "owner/repo", "master")
	hc := c.(*httpClient)
	assert.Equal(t, "tok", hc.token)
	assert.Equal(t, "owner/repo", hc.repo)
	assert.Equal(t, "master", hc.branch)
	assert.Equal(t, "https://api.github.com", hc.baseURL)
	assert.NotNil(t, hc.http)
}
