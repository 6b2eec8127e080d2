package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dghubble/oauth1"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/models"
)

// oauth1Client returns a client that signs every request with the stored
// token pair. Requests still go through the base transport of c.
func (c *apiClient) oauth1Client(ctx context.Context, cfg *oauth1.Config, creds models.Credentials) *http.Client {
	signed := cfg.Client(context.WithValue(ctx, oauth1.HTTPClient, c.http), oauth1.NewToken(creds.AccessToken, creds.TokenSecret))
	signed.Timeout = c.http.Timeout
	return signed
}

// oauth1Handshake runs one token request of the OAuth 1.0a flow under the
// rate limit and maps its failure by HTTP status. Response bodies never reach
// the returned error.
func (c *apiClient) oauth1Handshake(ctx context.Context, cfg oauth1.Config, call func(*oauth1.Config) (string, string, error)) (string, string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", c.transportError(err)
	}
	rt := &handshakeTransport{ctx: ctx, base: c.http.Transport}
	cfg.HTTPClient = &http.Client{Transport: rt, Timeout: c.http.Timeout}

	token, secret, err := call(&cfg)
	switch {
	case err == nil:
		return token, secret, nil
	case rt.status == 0:
		return "", "", c.transportError(err)
	case rt.status != http.StatusOK && rt.status != http.StatusCreated:
		return "", "", c.statusError(rt.status)
	default:
		return "", "", apperrors.WrapMessage(apperrors.ErrProviderSchema,
			fmt.Sprintf("%s: token response could not be decoded", c.provider), err)
	}
}

// handshakeTransport binds token requests to ctx and records the status of
// the last response.
type handshakeTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	status int
}

func (t *handshakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req.WithContext(t.ctx))
	if resp != nil {
		t.status = resp.StatusCode
	}
	return resp, err
}
