// Package regiojet is the read-only protocol client for the upstream
// provider: the per-route availability query and the location directory.
package regiojet

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
)

var (
	// ErrUpstream marks transport failures, timeouts and error statuses
	// other than 404. Callers use it to tell "we could not find out"
	// apart from "there are no seats".
	ErrUpstream = errors.New("regiojet: upstream unavailable")
	// ErrMalformed marks a structurally unusable payload where silently
	// degrading is not acceptable (the location directory).
	ErrMalformed = errors.New("regiojet: malformed payload")
)

const (
	headerLang     = "cs"
	headerCurrency = "CZK"
)

type Client struct {
	APIBaseURL     string
	BookingBaseURL string
	HTTP           *http.Client
}

func NewClient(apiBase, bookingBase string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		APIBaseURL:     strings.TrimRight(apiBase, "/"),
		BookingBaseURL: bookingBase,
		HTTP:           &http.Client{Timeout: timeout},
	}
}

// getJSON performs one GET against the API. It returns the status code and
// the decoded body for 2xx and 404 responses; everything else, including
// transport errors, comes back wrapping ErrUpstream. For 404 the decoded
// value is nil.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, currency bool) (int, any, error) {
	u := c.APIBaseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Lang", headerLang)
	if currency {
		req.Header.Set("X-Currency", headerCurrency)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s: %v", ErrUpstream, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil, fmt.Errorf("%w: %s: status %d", ErrUpstream, endpoint, resp.StatusCode)
	}
	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		// An undecodable 2xx body is handed to the caller as a nil value:
		// the availability checker fails closed on it, the directory
		// refresh treats it as a hard failure.
		return resp.StatusCode, nil, nil
	}
	return resp.StatusCode, v, nil
}
