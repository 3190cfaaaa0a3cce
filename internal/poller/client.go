// AngelaMos | 2026
// client.go

package poller

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrRequest = errors.New("checkout api request failed")

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelope[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Error   *apiError `json:"error"`
}

type verifyData struct {
	Outcome string `json:"outcome"`
	Status  Status `json:"status"`
}

// HTTPClient calls the public purchase API as the signed-in customer.
type HTTPClient struct {
	http *resty.Client
}

func NewHTTPClient(baseURL, accessToken string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(accessToken).
		SetHeader("Accept", "application/json")

	return &HTTPClient{http: client}
}

func (c *HTTPClient) Status(ctx context.Context, purchaseID string) (*Status, error) {
	var out envelope[Status]
	var apiErr envelope[struct{}]

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/purchases/" + url.PathEscape(purchaseID) + "/status")
	if err := check(resp, err, apiErr.Error); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}

	return &out.Data, nil
}

func (c *HTTPClient) Verify(ctx context.Context, purchaseID string) (*Status, error) {
	var out envelope[verifyData]
	var apiErr envelope[struct{}]

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/purchases/" + url.PathEscape(purchaseID) + "/verify")
	if err := check(resp, err, apiErr.Error); err != nil {
		return nil, fmt.Errorf("verify payment: %w", err)
	}

	return &out.Data.Status, nil
}

func check(resp *resty.Response, err error, apiErr *apiError) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	if resp.IsError() {
		if apiErr != nil && apiErr.Message != "" {
			return fmt.Errorf("%w: %d %s: %s", ErrRequest, resp.StatusCode(), apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("%w: status %d", ErrRequest, resp.StatusCode())
	}
	return nil
}
