// Package dropbox provides a client for the Dropbox HTTP API v2 operations
// this tool needs: listing a folder, producing a temporary direct link for a
// file, and deleting a file.
//
// Authentication uses the OAuth2 refresh-token flow: a long-lived refresh
// token plus app key/secret are exchanged for a short-lived access token once
// per run.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	// defaultBaseURL is the Dropbox RPC API base URL.
	defaultBaseURL = "https://api.dropboxapi.com"

	// defaultTokenURL is the OAuth2 token refresh endpoint.
	defaultTokenURL = "https://api.dropbox.com/oauth2/token"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second
)

// videoExts are the extensions published as VIDEO; eligibleExts is the full
// set of media extensions considered postable.
var (
	videoExts    = []string{".mp4", ".mov"}
	eligibleExts = []string{".mp4", ".mov", ".jpg", ".jpeg", ".png"}
)

// Entry is one file in a folder listing.
type Entry struct {
	Name      string `json:"name"`
	PathLower string `json:"path_lower"`
}

// IsVideo reports whether the entry's extension is a video type.
func (e Entry) IsVideo() bool {
	return hasAnySuffix(e.Name, videoExts)
}

// Eligible reports whether the entry's extension is an allowed media type.
func (e Entry) Eligible() bool {
	return hasAnySuffix(e.Name, eligibleExts)
}

func hasAnySuffix(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Client provides methods for the Dropbox file operations used by the poster.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokenURL   string

	appKey       string
	appSecret    string
	refreshToken string
	accessToken  string
}

// NewClient creates a Dropbox client for one account's app credentials.
// Authenticate must be called before any file operation.
func NewClient(appKey, appSecret, refreshToken string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL:      defaultBaseURL,
		tokenURL:     defaultTokenURL,
		appKey:       appKey,
		appSecret:    appSecret,
		refreshToken: refreshToken,
	}
}

// Authenticate exchanges the long-lived refresh token for a short-lived
// access token used by subsequent calls.
func (c *Client) Authenticate(ctx context.Context) error {
	conf := &oauth2.Config{
		ClientID:     c.appKey,
		ClientSecret: c.appSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.refreshToken}).Token()
	if err != nil {
		return fmt.Errorf("refresh access token: %w", err)
	}

	c.accessToken = tok.AccessToken
	log.Debug().Msg("Dropbox access token refreshed")
	return nil
}

// --- API request/response types ---

type listFolderRequest struct {
	Path string `json:"path"`
}

type listFolderResponse struct {
	Entries []Entry `json:"entries"`
}

type pathRequest struct {
	Path string `json:"path"`
}

type temporaryLinkResponse struct {
	Link string `json:"link"`
}

type apiErrorResponse struct {
	ErrorSummary string `json:"error_summary"`
}

// --- File operations ---

// ListFolder lists all entries in the given folder path.
func (c *Client) ListFolder(ctx context.Context, path string) ([]Entry, error) {
	var resp listFolderResponse
	if err := c.rpc(ctx, "/2/files/list_folder", listFolderRequest{Path: path}, &resp); err != nil {
		return nil, fmt.Errorf("list folder %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("entries", len(resp.Entries)).Msg("Folder listed")
	return resp.Entries, nil
}

// EligibleFiles filters a folder listing down to postable media entries.
func EligibleFiles(entries []Entry) []Entry {
	var eligible []Entry
	for _, e := range entries {
		if e.Eligible() {
			eligible = append(eligible, e)
		}
	}
	return eligible
}

// TemporaryLink returns a short-lived direct-download URL for the file.
func (c *Client) TemporaryLink(ctx context.Context, path string) (string, error) {
	var resp temporaryLinkResponse
	if err := c.rpc(ctx, "/2/files/get_temporary_link", pathRequest{Path: path}, &resp); err != nil {
		return "", fmt.Errorf("temporary link for %s: %w", path, err)
	}
	return resp.Link, nil
}

// Delete removes the file at the given path.
func (c *Client) Delete(ctx context.Context, path string) error {
	if err := c.rpc(ctx, "/2/files/delete_v2", pathRequest{Path: path}, nil); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("File deleted")
	return nil
}

// --- Internal helpers ---

// rpc sends a JSON RPC-style POST request to the Dropbox API and decodes the
// response into out (which may be nil when the response body is not needed).
func (c *Client) rpc(ctx context.Context, endpoint string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Str("endpoint", endpoint).Int("statusCode", httpResp.StatusCode).Dur("duration", time.Since(startTime)).Msg("Dropbox API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorSummary != "" {
			return fmt.Errorf("Dropbox API error (status %d): %s", httpResp.StatusCode, apiErr.ErrorSummary)
		}
		return fmt.Errorf("Dropbox API error (status %d): %s", httpResp.StatusCode, truncate(string(body), 200))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}
	return nil
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
