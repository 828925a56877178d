// Package gmail adapts the Gmail REST API to the uniform mailbox
// operation surface. Unlike the IMAP backend there is no persistent
// connection or selected-mailbox state: every call carries its full
// addressing context, and token refresh is delegated to the oauth2
// transport.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/nhle/mailbridge/internal/credential"
)

// defaultBaseURL is the Gmail API root scoped to the authenticated
// user.
const defaultBaseURL = "https://gmail.googleapis.com/gmail/v1/users/me"

// googleEndpoint is the OAuth2 token endpoint pair for Google
// accounts.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// Client is a thin HTTP client for the Gmail REST API. It handles
// OAuth2 Bearer authentication with automatic token refresh, JSON
// marshaling, and retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// NewClient builds a Gmail client from a stored OAuth token bundle.
// The oauth2 transport refreshes the access token as needed; this
// layer never inspects expiry itself.
func NewClient(ctx context.Context, bundle *credential.OAuthBundle) *Client {
	conf := &oauth2.Config{
		ClientID:     bundle.ClientID,
		ClientSecret: bundle.ClientSecret,
		Scopes:       bundle.Scopes,
		Endpoint:     googleEndpoint,
	}
	token := &oauth2.Token{
		AccessToken:  bundle.AccessToken,
		RefreshToken: bundle.RefreshToken,
		TokenType:    bundle.TokenType,
		Expiry:       bundle.Expiry,
	}

	httpClient := conf.Client(ctx, token)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		maxRetries: 3,
	}
}

// apiError is a non-2xx response from the Gmail API, carrying the
// status code so callers can map well-known statuses onto the
// provider error taxonomy.
type apiError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf(
		"gmail API error (%d) on %s %s: %s",
		e.Status, e.Method, e.Path, e.Message,
	)
}

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

// Put performs an HTTP PUT request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Put(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPut, path, body, result)
}

// Delete performs an HTTP DELETE request, discarding any response
// body.
func (c *Client) Delete(
	ctx context.Context,
	path string,
) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do is the core HTTP method that builds the request, handles rate
// limiting with exponential backoff, and JSON (de)serialization. The
// oauth2 transport injects and refreshes the Bearer token.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(
			ctx, method, url, bodyReader,
		)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf(
				"executing request %s %s: %w", method, path, err,
			)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf(
				"rate limited (429) on %s %s", method, path,
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &apiError{
				Status:  resp.StatusCode,
				Method:  method,
				Path:    path,
				Message: apiErrorMessage(respBody),
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w",
				method, path, err,
			)
		}

		return nil
	}

	return fmt.Errorf(
		"max retries (%d) exceeded: %w", c.maxRetries, lastErr,
	)
}

// apiErrorMessage extracts the human-readable message from a Gmail
// error body, falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var wrapped errorResponse
	if json.Unmarshal(body, &wrapped) == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return string(body)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
