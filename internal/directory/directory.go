// Package directory exposes the external account directory to the core as
// a single lookup capability. The directory service itself is an external
// collaborator; only registration consults it.
package directory

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

// Account is the directory's view of an account.
type Account struct {
	Exists bool
	Active bool
}

type Client interface {
	Lookup(ctx context.Context, accountID string) (Account, error)
}

var ErrAPI = errors.New("directory api error")

type APIError struct {
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if status := strings.TrimSpace(e.Status); status != "" {
		return fmt.Sprintf("directory api error: %s", status)
	}
	return "directory api error"
}

func (e *APIError) Unwrap() error {
	return ErrAPI
}

const defaultLookupTimeout = 5 * time.Second

// HTTPClient looks accounts up over the directory's REST surface:
// GET {base}/v1/accounts/{id} returning {"active": bool}; a 404 means the
// account does not exist (a successful lookup, not an error).
type HTTPClient struct {
	base   string
	client *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &HTTPClient{
		base:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Lookup(ctx context.Context, accountID string) (Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Account{}, errors.New("account id is required")
	}
	if c.base == "" {
		return Account{}, errors.New("directory base URL is not configured")
	}

	endpoint := c.base + "/v1/accounts/" + url.PathEscape(accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Account{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Account{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Account{Exists: false}, nil
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Account{}, &APIError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var payload struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Account{}, fmt.Errorf("decoding directory response: %w", err)
	}
	return Account{Exists: true, Active: payload.Active}, nil
}
