// Package youtube looks up playable YouTube videos for recommended tracks.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	baseURL   = "https://www.googleapis.com/youtube/v3/search"
	userAgent = "mood-recommender/1.0"

	// suspendFor is how long lookups stay off after the quota is exhausted
	// or the key is rejected.
	suspendFor = time.Hour
)

// Error reasons reported by the Data API.
const (
	reasonQuotaExceeded     = "quotaExceeded"
	reasonRateLimitExceeded = "rateLimitExceeded"
	reasonKeyInvalid        = "keyInvalid"
)

var (
	// ErrRateLimited is returned when short-term rate limiting persists after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrQuotaExceeded is returned when the daily quota is used up. It is not retried.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrInvalidAPIKey is returned when the API key is rejected.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// IsTerminal reports whether err means no further lookups can succeed for a while.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrInvalidAPIKey)
}

// Config holds YouTube Data API configuration. An empty APIKey disables lookups.
type Config struct {
	APIKey string
}

// Client is a YouTube search client with an in-memory cache and retry on
// rate limiting. A quota or key error suspends all lookups for suspendFor.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	delays     []time.Duration
	now        func() time.Time

	// key = "{name}\x00{artist}"; misses are cached as ""
	cache   map[string]string
	cacheMu sync.RWMutex

	suspendMu      sync.Mutex
	suspendedUntil time.Time
	suspendErr     error
}

// NewClient creates a new YouTube client from the provided configuration.
func NewClient(cfg *Config) *Client {
	return &Client{
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		delays:  []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
		now:     time.Now,
		cache:   make(map[string]string),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// VideoID returns the first video matching "name artist", or "" when there is
// no match or the client has no API key.
func (c *Client) VideoID(ctx context.Context, name, artist string) (string, error) {
	if !c.Enabled() {
		return "", nil
	}

	cacheKey := name + "\x00" + artist
	c.cacheMu.RLock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	if err := c.suspended(); err != nil {
		return "", err
	}

	params := url.Values{
		"part":       {"snippet"},
		"q":          {strings.TrimSpace(name + " " + artist)},
		"type":       {"video"},
		"maxResults": {"1"},
		"key":        {c.apiKey},
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		if IsTerminal(err) {
			c.suspend(err)
		}
		return "", fmt.Errorf("searching videos: %w", err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing search response: %w", err)
	}

	var id string
	if len(resp.Items) > 0 {
		id = resp.Items[0].ID.VideoID
	}

	c.cacheMu.Lock()
	c.cache[cacheKey] = id
	c.cacheMu.Unlock()

	return id, nil
}

func (c *Client) suspended() error {
	c.suspendMu.Lock()
	defer c.suspendMu.Unlock()
	if c.suspendErr != nil && c.now().Before(c.suspendedUntil) {
		return c.suspendErr
	}
	return nil
}

func (c *Client) suspend(err error) {
	c.suspendMu.Lock()
	defer c.suspendMu.Unlock()
	if errors.Is(err, ErrQuotaExceeded) {
		c.suspendErr = ErrQuotaExceeded
	} else {
		c.suspendErr = ErrInvalidAPIKey
	}
	c.suspendedUntil = c.now().Add(suspendFor)
}

// doRequest performs a GET with retry on rate limiting, backing off 1s, 2s, 4s.
func (c *Client) doRequest(ctx context.Context, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= len(c.delays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}
		return nil, err
	}

	return nil, lastErr
}

func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}

	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	switch apiErr.reason() {
	case reasonRateLimitExceeded:
		return nil, ErrRateLimited
	case reasonQuotaExceeded:
		return nil, ErrQuotaExceeded
	case reasonKeyInvalid:
		return nil, ErrInvalidAPIKey
	}
	return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, apiErr.Error.Message)
}
