// Package github wraps the GitHub repository contents API for reading and
// writing JSON documents stored in a repo.
//
// Writes use the contents API's SHA-based optimistic concurrency: updating
// an existing file requires the SHA of the blob being replaced, and GitHub
// rejects the write with a conflict status when the SHA is stale. Callers
// that race (see internal/cache) re-read the file and retry.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://api.github.com"

// ErrConflict reports that a write was rejected because the supplied SHA no
// longer matches the file's current blob. Check with errors.Is.
var ErrConflict = errors.New("github: sha conflict")

// File is the decoded state of a repository file.
type File struct {
	// Exists is false when the path is not present on the branch.
	Exists bool
	// Content is the decoded file body. Nil when Exists is false.
	Content []byte
	// SHA is the blob SHA required to update the file.
	SHA string
}

// Client performs repository contents operations against a single
// owner/repo and branch.
type Client interface {
	GetFile(ctx context.Context, path string) (*File, error)
	PutFile(ctx context.Context, path string, content []byte, message, sha string) error
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
	token   string
	repo    string // "owner/name"
	branch  string
	baseURL string
	http    *http.Client
}

// NewClient creates a contents client for one repository and branch. repo is
// in "owner/name" form.
func NewClient(token, repo, branch string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		repo:    repo,
		branch:  branch,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type contentsResponse struct {
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	SHA         string `json:"sha"`
	DownloadURL string `json:"download_url"`
}

func (c *httpClient) GetFile(ctx context.Context, path string) (*File, error) {
	u := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", c.baseURL, c.repo, path, c.branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "github: create request")
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "github: get contents")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "github: read response")
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through
	case http.StatusNotFound:
		return &File{Exists: false}, nil
	default:
		return nil, eris.Errorf("github: unexpected status %d getting %s: %s", resp.StatusCode, path, string(respBody))
	}

	var contents contentsResponse
	if err := json.Unmarshal(respBody, &contents); err != nil {
		return nil, eris.Wrap(err, "github: unmarshal contents")
	}

	decoded, err := decodeContent(&contents)
	if err != nil {
		return nil, err
	}
	if decoded == nil && contents.DownloadURL != "" {
		// Files over 1MB come back with empty content and a download URL.
		decoded, err = c.download(ctx, contents.DownloadURL)
		if err != nil {
			return nil, err
		}
	}

	return &File{Exists: true, Content: decoded, SHA: contents.SHA}, nil
}

func (c *httpClient) PutFile(ctx context.Context, path string, content []byte, message, sha string) error {
	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  c.branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return eris.Wrap(err, "github: marshal put payload")
	}

	u := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, c.repo, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "github: create request")
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "github: put contents")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "github: read response")
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return eris.Wrapf(ErrConflict, "github: put %s", path)
	case http.StatusUnprocessableEntity:
		// 422 with an sha message is the contents API's other stale-sha shape.
		if strings.Contains(strings.ToLower(string(respBody)), "sha") {
			return eris.Wrapf(ErrConflict, "github: put %s", path)
		}
		return eris.Errorf("github: unexpected status 422 putting %s: %s", path, string(respBody))
	default:
		return eris.Errorf("github: unexpected status %d putting %s: %s", resp.StatusCode, path, string(respBody))
	}
}

func (c *httpClient) download(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "github: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "github: download raw content")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "github: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("github: unexpected status %d downloading content", resp.StatusCode)
	}
	return respBody, nil
}

func decodeContent(contents *contentsResponse) ([]byte, error) {
	if contents.Content == "" {
		return nil, nil
	}
	// The API wraps base64 content in newlines.
	cleaned := strings.ReplaceAll(contents.Content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, eris.Wrap(err, "github: decode content")
	}
	return decoded, nil
}

func (c *httpClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}
