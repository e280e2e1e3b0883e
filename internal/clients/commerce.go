package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"storefront/internal/config"
)

const commerceProbeName = "commerce"

// ErrCommerceNotInitialised is returned by calls made before Init.
var ErrCommerceNotInitialised = errors.New("commerce client not initialised")

// CommerceClient talks to the WooCommerce REST API. Init records the
// credentials and performs a handshake against the API index; every outbound
// call goes through the circuit breaker.
type CommerceClient struct {
	cb     *gobreaker.CircuitBreaker
	httpDo func(req *http.Request) (*http.Response, error)

	mu      sync.RWMutex
	cfg     config.CommerceConfig
	baseURL string
}

// NewCommerceClient constructs a CommerceClient. No HTTP calls are made until
// Init.
func NewCommerceClient(cb *gobreaker.CircuitBreaker) *CommerceClient {
	return &CommerceClient{
		cb:     cb,
		httpDo: http.DefaultClient.Do,
	}
}

// Init stores cfg and checks the REST index answers. A non-2xx answer or an
// unreachable shop is returned as an error.
func (c *CommerceClient) Init(ctx context.Context, cfg config.CommerceConfig) error {
	base, err := apiBase(cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cfg = cfg
	c.baseURL = base
	c.mu.Unlock()

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if err := c.handshake(ctx); err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return fmt.Errorf("circuit open: %w", err)
		}
		return err
	}
	return nil
}

// Probe checks the REST index is reachable with the stored credentials.
func (c *CommerceClient) Probe(ctx context.Context) ProbeResult {
	start := time.Now()
	return probeResult(commerceProbeName, start, c.handshake(ctx))
}

// Endpoint returns the absolute URL for an API path such as "products",
// carrying query-string credentials when that auth mode is configured.
func (c *CommerceClient) Endpoint(path string, query url.Values) (string, error) {
	c.mu.RLock()
	cfg, base := c.cfg, c.baseURL
	c.mu.RUnlock()

	if base == "" {
		return "", ErrCommerceNotInitialised
	}

	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	if cfg.QueryStringAuth {
		q.Set("consumer_key", cfg.ConsumerKey)
		q.Set("consumer_secret", cfg.ConsumerSecret)
	}

	u := base
	if p := strings.Trim(path, "/"); p != "" {
		u += "/" + p
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u, nil
}

// handshake resolves the endpoint outside the breaker: a client that has not
// been initialised yet is not a failing shop.
func (c *CommerceClient) handshake(ctx context.Context) error {
	endpoint, err := c.Endpoint("", nil)
	if err != nil {
		return err
	}

	_, err = c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("building commerce request: %w", err)
		}
		c.authorize(req)

		resp, err := c.httpDo(req)
		if err != nil {
			return nil, fmt.Errorf("commerce request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("commerce API returned HTTP %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

// authorize sets basic auth when query-string auth is disabled.
func (c *CommerceClient) authorize(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.cfg.QueryStringAuth {
		req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	}
}

// apiBase resolves the REST root: /wp-json/<version> for the WP REST
// integration, /wc-api/<version> for the legacy API.
func apiBase(cfg config.CommerceConfig) (string, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid commerce url %q", cfg.URL)
	}
	prefix := "wc-api"
	if cfg.WPAPI {
		prefix = "wp-json"
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(cfg.URL, "/"), prefix, strings.Trim(cfg.Version, "/")), nil
}
