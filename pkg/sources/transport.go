package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fundatrack/fundatrack/pkg/errors"
)

// DefaultHTTPTimeout is the default timeout for HTTP requests.
const DefaultHTTPTimeout = 30 * time.Second

// maxResponseBytes caps response bodies; listing pages are far below this.
const maxResponseBytes = 8 << 20

// client wraps an http.Client with the failure classification both adapters
// share: network-level failures and throttling/server statuses are transient,
// everything else is permanent.
type client struct {
	http      *http.Client
	origin    string
	userAgent string
}

func newClient(origin, userAgent string, timeout time.Duration) *client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &client{
		http:      &http.Client{Timeout: timeout},
		origin:    origin,
		userAgent: userAgent,
	}
}

// get performs a GET and returns the response body. Errors are returned as
// *errors.ExtractionError classified for the retry policy.
func (c *client) get(ctx context.Context, url string, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewPermanentError(c.origin, "building request for "+url, err)
	}
	req.Header.Set("Accept", accept)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are worth retrying; a context
		// cancellation is not.
		if ctx.Err() != nil {
			return nil, errors.NewPermanentError(c.origin, "request cancelled", ctx.Err())
		}
		return nil, errors.NewTransientError(c.origin, "request to "+url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.NewTransientError(c.origin, "reading response from "+url, err)
	}

	if err := c.classifyStatus(resp.StatusCode, url); err != nil {
		return nil, err
	}
	return body, nil
}

// getJSON performs a GET and decodes the JSON response into v.
func (c *client) getJSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewPermanentError(c.origin, "decoding response from "+url, err)
	}
	return nil
}

// classifyStatus maps an HTTP status to the transient/permanent taxonomy.
// Rate limiting (429), server errors (5xx) and request timeouts (408) clear
// on retry; any other non-2xx status will not.
func (c *client) classifyStatus(status int, url string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return errors.NewTransientError(c.origin, fmt.Sprintf("GET %s returned %d", url, status), nil)
	default:
		return errors.NewPermanentError(c.origin, fmt.Sprintf("GET %s returned %d", url, status), nil)
	}
}
