// Package threads provides a client for the Threads Graph API content
// publishing endpoints, and a Publisher that drives the full publish
// protocol for one media file.
//
// Threads publishing is a multi-step process:
//  1. Create a media container (media uploaded via public URL)
//  2. For videos: poll container status until transcoding completes
//  3. Publish the container
//
// Text-only posts are a single call with no container lifecycle.
package threads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// defaultBaseURL is the Threads Graph API base URL.
	defaultBaseURL = "https://graph.threads.net/v1.0"

	// defaultTimeout is the HTTP client timeout for API calls.
	defaultTimeout = 30 * time.Second

	// backendNotReadySubcode is the error subcode Threads returns when the
	// publish backend needs more time after transcoding. The only error
	// worth retrying a publish for.
	backendNotReadySubcode = 2207032
)

// Container processing statuses reported by the status endpoint.
const (
	StatusFinished   = "FINISHED"
	StatusError      = "ERROR"
	StatusInProgress = "IN_PROGRESS"
)

// Client provides methods for publishing to Threads via the Graph API.
type Client struct {
	httpClient  *http.Client
	accessToken string
	userID      string
	baseURL     string
}

// NewClient creates a Threads API client for one account.
func NewClient(accessToken, userID string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		accessToken: accessToken,
		userID:      userID,
		baseURL:     defaultBaseURL,
	}
}

// --- API response types ---

// apiResponse is the generic Threads Graph API response.
type apiResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

// APIError is the structured error object Threads returns alongside non-200
// responses. Subcode distinguishes the retryable backend-not-ready condition
// from terminal failures.
type APIError struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Threads API error: %s (type: %s, code: %d, subcode: %d, http: %d)",
		e.Message, e.Type, e.Code, e.Subcode, e.StatusCode)
}

// IsBackendNotReady reports whether err is the retryable publish error
// indicating the Threads backend needs more time.
func IsBackendNotReady(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Subcode == backendNotReadySubcode
}

// --- Container creation ---

// CreateMediaContainer creates a media container for the given public media
// URL and caption. Returns the creation ID used for polling and publishing.
// A 200 response without a creation ID is an error.
func (c *Client) CreateMediaContainer(ctx context.Context, mediaURL, caption string, video bool) (string, error) {
	mediaType := "IMAGE"
	urlField := "image_url"
	if video {
		mediaType = "VIDEO"
		urlField = "video_url"
	}

	params := url.Values{
		"access_token": {c.accessToken},
		"text":         {caption},
		"media_type":   {mediaType},
		urlField:       {mediaURL},
	}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/threads", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("create media container: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("create media container: no creation id returned")
	}
	log.Info().Str("creationId", resp.ID).Str("type", mediaType).Msg("Media container created")
	return resp.ID, nil
}

// CreateTextPost creates a text-only post. Unlike media posts there is no
// container lifecycle: a 200 response means the post is live.
func (c *Client) CreateTextPost(ctx context.Context, caption string) error {
	params := url.Values{
		"access_token": {c.accessToken},
		"text":         {caption},
		"media_type":   {"TEXT_POST"},
	}

	if _, err := c.postForm(ctx, fmt.Sprintf("/%s/threads", c.userID), params); err != nil {
		return fmt.Errorf("create text post: %w", err)
	}
	log.Info().Msg("Text post created")
	return nil
}

// --- Status polling ---

// ContainerStatus returns the transcoding status of a media container:
// IN_PROGRESS, FINISHED, or ERROR.
func (c *Client) ContainerStatus(ctx context.Context, creationID string) (string, error) {
	endpoint := fmt.Sprintf("/%s?fields=status&access_token=%s",
		creationID, url.QueryEscape(c.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("container status request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}

	if err := apiFailure(httpResp.StatusCode, &resp, body); err != nil {
		return "", err
	}

	return resp.Status, nil
}

// --- Publishing ---

// PublishContainer publishes a previously created media container. Returns
// the ID of the published post.
func (c *Client) PublishContainer(ctx context.Context, creationID string) (string, error) {
	log.Debug().Str("creationId", creationID).Msg("Publishing container")
	params := url.Values{
		"access_token": {c.accessToken},
		"creation_id":  {creationID},
	}

	resp, err := c.postForm(ctx, fmt.Sprintf("/%s/threads_publish", c.userID), params)
	if err != nil {
		return "", fmt.Errorf("publish container %s: %w", creationID, err)
	}
	log.Info().Str("creationId", creationID).Str("postId", resp.ID).Msg("Container published successfully")
	return resp.ID, nil
}

// --- Internal helpers ---

// postForm sends a POST request with form-encoded parameters to the Threads API.
func (c *Client) postForm(ctx context.Context, endpoint string, params url.Values) (*apiResponse, error) {
	startTime := time.Now()

	log.Debug().Str("method", http.MethodPost).Str("path", endpoint).Msg("Threads API request")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint,
		strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Threads API response")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Threads API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}

	if err := apiFailure(httpResp.StatusCode, &resp, body); err != nil {
		return nil, err
	}

	return &resp, nil
}

// apiFailure converts a non-200 response into an error, preferring the
// structured error object so callers can inspect the subcode.
func apiFailure(statusCode int, resp *apiResponse, body []byte) error {
	if resp.Error != nil {
		resp.Error.StatusCode = statusCode
		log.Error().Str("errorMessage", resp.Error.Message).Str("errorType", resp.Error.Type).
			Int("errorCode", resp.Error.Code).Int("errorSubcode", resp.Error.Subcode).Msg("Threads API error")
		return resp.Error
	}
	if statusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d (body: %s)", statusCode, truncate(string(body), 200))
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
