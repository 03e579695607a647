// Package davclient provides the minimal HTTP/XML request plumbing the
// Calendar Fetcher needs to issue a CalDAV REPORT query: building the
// request, attaching Basic auth, and turning a non-2xx response into an
// error carrying the status code and at most the first 1024 bytes of the
// response body.
//
// It is adapted from emersion/go-webdav's internal.Client: the same
// request-building and status-checking shape, trimmed to the one method
// (REPORT) and one content type (application/xml) the Fetcher uses.
package davclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPClient performs HTTP requests. It's implemented by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when a CalDAV server answers a request with a
// non-2xx status. Fetch treats it as fatal for the whole fetch.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("caldav: server returned status %d", e.Code)
	}
	return fmt.Sprintf("caldav: server returned status %d: %s", e.Code, e.Body)
}

// Client issues authenticated REPORT requests against a single CalDAV
// collection URL.
type Client struct {
	HTTP HTTPClient
}

// New returns a Client using c, or http.DefaultClient if c is nil.
func New(c HTTPClient) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{HTTP: c}
}

// Report issues an HTTP request with the given method token against url,
// with body as the XML request payload. If hasAuth is true, HTTP Basic
// auth with user and pass is attached. The raw response body is returned on success; a
// non-2xx status yields a *StatusError and fails the whole request.
func (c *Client) Report(ctx context.Context, method, url string, body []byte, user, pass string, hasAuth bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("caldav: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml")
	if hasAuth {
		req.SetBasicAuth(user, pass)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caldav: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("caldav: reading response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		snippet := string(respBody)
		if len(snippet) > 1024 {
			snippet = snippet[:1024] + " […]"
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: snippet}
	}

	return respBody, nil
}
