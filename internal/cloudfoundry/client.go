package cloudfoundry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/quotadb/quotadb/internal/config"
	"github.com/quotadb/quotadb/internal/errors"
	"github.com/quotadb/quotadb/internal/logging"
	"github.com/quotadb/quotadb/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// Token is the result of a password-grant exchange.
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	IssuedAt    time.Time
}

// Valid reports whether the token is still usable at the given instant.
func (t *Token) Valid(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	return now.Sub(t.IssuedAt) < time.Duration(t.ExpiresIn)*time.Second
}

// Client talks to the platform management API. It authenticates once and
// refreshes the token on demand; concurrent callers hitting an expired
// token share a single exchange.
type Client struct {
	apiURL     string
	uaaURL     string
	username   string
	password   string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.Metrics

	mu      sync.RWMutex
	token   *Token
	refresh singleflight.Group

	// now is swapped in tests to drive expiry.
	now func() time.Time
}

// New creates a client for the configured platform endpoints.
func New(cfg config.CloudFoundryConfig, logger *logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		uaaURL:     strings.TrimRight(cfg.UAAURL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

// SetMetrics attaches a metrics instance so token exchanges are counted.
func (c *Client) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// Authenticate performs the password-grant exchange and caches the
// resulting token.
func (c *Client) Authenticate(ctx context.Context) (*Token, error) {
	tokenURL := c.uaaURL + "/oauth/token"

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.username},
		"password":   {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &errors.ErrAuth{URL: tokenURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// The platform login server accepts the public "cf" client with an
	// empty secret.
	req.Header.Set("Authorization", "Basic Y2Y6")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errors.ErrAuth{URL: tokenURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &errors.ErrAuth{URL: tokenURL, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, &errors.ErrAuth{URL: tokenURL, Err: err}
	}
	if token.AccessToken == "" {
		return nil, &errors.ErrAuth{URL: tokenURL, Err: fmt.Errorf("response carried no access token")}
	}
	token.IssuedAt = c.now()

	c.mu.Lock()
	c.token = &token
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.TokenRefreshes.Inc()
	}
	c.logger.Debug("token exchanged", "expires_in", token.ExpiresIn)
	return &token, nil
}

// AccessToken returns the cached token, refreshing it synchronously when
// expired. The refresh is single-flighted: under concurrent callers only
// one exchange hits the network per expiry.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token.Valid(c.now()) {
		return token.AccessToken, nil
	}

	result, err, _ := c.refresh.Do("token", func() (interface{}, error) {
		// Another caller may have refreshed while this one waited.
		c.mu.RLock()
		cached := c.token
		c.mu.RUnlock()
		if cached.Valid(c.now()) {
			return cached, nil
		}
		return c.Authenticate(ctx)
	})
	if err != nil {
		return "", err
	}
	return result.(*Token).AccessToken, nil
}

// Fetch issues an authenticated GET against the API and returns the raw
// JSON body. The endpoint may be a path ("/v2/organizations") or an
// absolute URL.
func (c *Client) Fetch(ctx context.Context, endpoint string) (json.RawMessage, error) {
	accessToken, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	fetchURL := endpoint
	if strings.HasPrefix(endpoint, "/") {
		fetchURL = c.apiURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, &errors.ErrRequest{URL: fetchURL, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &errors.ErrRequest{URL: fetchURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &errors.ErrRequest{URL: fetchURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errors.ErrRequest{URL: fetchURL, Err: err}
	}
	return body, nil
}

// FetchJSON fetches an endpoint and decodes it into out.
func (c *Client) FetchJSON(ctx context.Context, endpoint string, out interface{}) error {
	body, err := c.Fetch(ctx, endpoint)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
