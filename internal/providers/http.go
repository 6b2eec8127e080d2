package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
)

const maxResponseBytes = 8 << 20

// ClientOptions configures the HTTP behaviour shared by all adapters.
type ClientOptions struct {
	// HTTPClient is used as-is when set; Timeout is then ignored.
	HTTPClient *http.Client
	Timeout    time.Duration
	// RateLimit is the sustained requests per second allowed per adapter.
	RateLimit float64
	Burst     int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.RateLimit <= 0 {
		o.RateLimit = 2
	}
	if o.Burst <= 0 {
		o.Burst = 4
	}
	return o
}

// apiClient performs rate-limited JSON requests against one provider and maps
// failures onto the error taxonomy. Error messages carry only the provider and
// HTTP status; response bodies are never included.
type apiClient struct {
	provider models.Provider
	http     *http.Client
	limiter  *rate.Limiter
}

func newAPIClient(p models.Provider, opts ClientOptions) *apiClient {
	opts = opts.withDefaults()
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &apiClient{
		provider: p,
		http:     client,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
	}
}

// statusClassifier inspects a non-2xx response and may return a more precise
// error than the status-based default. Returning nil falls back to the default.
type statusClassifier func(status int, body []byte) error

// do sends req and decodes a successful body into out. out may be nil.
func (c *apiClient) do(req *http.Request, out any, classify statusClassifier) error {
	return c.doWith(c.http, req, out, classify)
}

// doWith is do over hc, for adapters that sign requests in a transport.
func (c *apiClient) doWith(hc *http.Client, req *http.Request, out any, classify statusClassifier) error {
	body, err := c.sendWith(hc, req, classify)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.WrapMessage(apperrors.ErrProviderSchema,
			fmt.Sprintf("%s: response could not be decoded", c.provider), err)
	}
	return nil
}

// send performs req and returns the body of a 2xx response.
func (c *apiClient) send(req *http.Request, classify statusClassifier) ([]byte, error) {
	return c.sendWith(c.http, req, classify)
}

func (c *apiClient) sendWith(hc *http.Client, req *http.Request, classify statusClassifier) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, c.transportError(err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if classify != nil {
			if err := classify(resp.StatusCode, body); err != nil {
				return nil, err
			}
		}
		return nil, c.statusError(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	return body, nil
}

func (c *apiClient) transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return apperrors.WrapMessage(apperrors.ErrProviderTransport,
			fmt.Sprintf("%s: request canceled", c.provider), err)
	}
	return apperrors.WrapMessage(apperrors.ErrProviderTransport,
		fmt.Sprintf("%s: request failed", c.provider), err)
}

func (c *apiClient) statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperrors.WithMessage(apperrors.ErrProviderAuth,
			fmt.Sprintf("%s: authorization rejected (HTTP %d)", c.provider, status))
	case status == http.StatusTooManyRequests:
		return apperrors.WithMessage(apperrors.ErrProviderRateLimited,
			fmt.Sprintf("%s: rate limited (HTTP %d)", c.provider, status))
	case status >= 500:
		return apperrors.WithMessage(apperrors.ErrProviderTransport,
			fmt.Sprintf("%s: provider unavailable (HTTP %d)", c.provider, status))
	default:
		return apperrors.WithMessage(apperrors.ErrProviderSchema,
			fmt.Sprintf("%s: request rejected (HTTP %d)", c.provider, status))
	}
}

func (c *apiClient) schemaError(format string, args ...any) error {
	return apperrors.WithMessage(apperrors.ErrProviderSchema,
		fmt.Sprintf("%s: ", c.provider)+fmt.Sprintf(format, args...))
}
