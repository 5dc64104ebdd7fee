// Package auth provides app-level Spotify authentication using the OAuth2
// client-credentials flow, with in-memory and optional on-disk token caching.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/justestif/go-mood-recommender/internal/logging"
)

// expirySkew is how long before expiry a cached token is considered stale.
const expirySkew = 60 * time.Second

// ErrMissingCredentials is returned when the client ID or secret is empty.
var ErrMissingCredentials = errors.New("missing Spotify client ID or secret")

// ClientCredentials is a token source that caches the app access token and
// refreshes it just before it expires. It is safe for concurrent use.
type ClientCredentials struct {
	cfg        clientcredentials.Config
	cache      *TokenCache
	httpClient *http.Client
	now        func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
}

// Option configures a ClientCredentials.
type Option func(*ClientCredentials)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(u string) Option {
	return func(c *ClientCredentials) {
		c.cfg.TokenURL = u
	}
}

// WithTokenCache persists fetched tokens so restarts can reuse them.
func WithTokenCache(cache *TokenCache) Option {
	return func(c *ClientCredentials) {
		c.cache = cache
	}
}

// WithHTTPClient sets the client used to reach the token endpoint.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ClientCredentials) {
		c.httpClient = hc
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *ClientCredentials) {
		c.now = now
	}
}

// NewClientCredentials creates a token source for the given app credentials.
// A still-valid token found in the optional cache is reused.
func NewClientCredentials(clientID, clientSecret string, opts ...Option) (*ClientCredentials, error) {
	if clientID == "" || clientSecret == "" {
		return nil, ErrMissingCredentials
	}

	c := &ClientCredentials{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyauth.TokenURL,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cache != nil {
		token, err := c.cache.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", c.cache.Path()).Msg("ignoring unreadable token cache")
		} else if c.valid(token) {
			c.token = token
		}
	}

	return c, nil
}

// Token returns a valid access token, fetching a new one when needed.
// It implements oauth2.TokenSource.
func (c *ClientCredentials) Token() (*oauth2.Token, error) {
	return c.TokenContext(context.Background())
}

// TokenContext is Token with a caller-supplied context for the fetch.
func (c *ClientCredentials) TokenContext(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid(c.token) {
		return c.token, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := c.cfg.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching client credentials token: %w", err)
	}
	c.token = token

	if c.cache != nil {
		if err := c.cache.Save(token); err != nil {
			logging.Warn().Err(err).Msg("failed to cache token")
		}
	}

	return token, nil
}

// Client returns an HTTP client that authorizes every request with the
// cached token.
func (c *ClientCredentials) Client(base http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{Source: c, Base: base},
		Timeout:   15 * time.Second,
	}
}

// Invalidate drops the cached token so the next call fetches a new one.
func (c *ClientCredentials) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *ClientCredentials) valid(token *oauth2.Token) bool {
	if token == nil || token.AccessToken == "" {
		return false
	}
	if token.Expiry.IsZero() {
		return true
	}
	return c.now().Add(expirySkew).Before(token.Expiry)
}

var _ oauth2.TokenSource = (*ClientCredentials)(nil)
