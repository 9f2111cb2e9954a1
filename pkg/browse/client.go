// Package browse provides a client for the marketplace's structured-data
// item search API.
package browse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client defines the structured search operations.
type Client interface {
	// Search returns active fixed-price item summaries for a query.
	Search(ctx context.Context, query string, limit int) ([]ItemSummary, error)
	// SearchSold returns sold item summaries for a query.
	SearchSold(ctx context.Context, query string, limit int) ([]ItemSummary, error)
}

// ItemSummary is one raw item from the structured search response.
type ItemSummary struct {
	Title           string           `json:"title"`
	Price           Money            `json:"price"`
	ShippingOptions []ShippingOption `json:"shippingOptions"`
	BuyingOptions   []string         `json:"buyingOptions"`
	ItemGroupType   string           `json:"itemGroupType"`
	ItemWebURL      string           `json:"itemWebUrl"`
	Condition       string           `json:"condition"`
}

// Money is a decimal value carried as a string by the API.
type Money struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Float returns the numeric value, or 0 when the field is absent/garbled.
func (m Money) Float() float64 {
	f, err := strconv.ParseFloat(m.Value, 64)
	if err != nil {
		return 0
	}
	return f
}

// ShippingOption is one shipping offer on an item.
type ShippingOption struct {
	ShippingCost Money `json:"shippingCost"`
}

type searchResponse struct {
	ItemSummaries []ItemSummary `json:"itemSummaries"`
}

// Option configures the browse client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate.
func WithRateLimit(perSec float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

type httpClient struct {
	token         string
	marketplaceID string
	baseURL       string
	http          *http.Client
	limiter       *rate.Limiter
}

// NewClient creates a structured-search client. A missing token is an
// unrecoverable precondition failure, reported at construction rather than
// masked during retrieval.
func NewClient(token, marketplaceID string, opts ...Option) (Client, error) {
	if token == "" {
		return nil, eris.New("browse: missing API token")
	}
	c := &httpClient{
		token:         token,
		marketplaceID: marketplaceID,
		baseURL:       "https://api.ebay.com/buy/browse/v1",
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2.5), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *httpClient) Search(ctx context.Context, query string, limit int) ([]ItemSummary, error) {
	return c.search(ctx, query, limit, false)
}

func (c *httpClient) SearchSold(ctx context.Context, query string, limit int) ([]ItemSummary, error) {
	return c.search(ctx, query, limit, true)
}

func (c *httpClient) search(ctx context.Context, query string, limit int, sold bool) ([]ItemSummary, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "browse: rate limiter")
	}

	filter := "buyingOptions:{FIXED_PRICE},priceType:FIXED"
	if sold {
		filter += ",soldItemsOnly:true"
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("filter", filter)
	params.Set("fieldgroups", "EXTENDED")

	reqURL := fmt.Sprintf("%s/item_summary/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "browse: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if c.marketplaceID != "" {
		req.Header.Set("X-EBAY-C-MARKETPLACE-ID", c.marketplaceID)
	}

	body, statusCode, err := doWithRateLimitRetry(ctx, c.http, req)
	if err != nil {
		return nil, eris.Wrap(err, "browse: request failed")
	}
	if statusCode != http.StatusOK {
		return nil, eris.Errorf("browse: unexpected status %d: %s", statusCode, truncate(body, 300))
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "browse: unmarshal response")
	}
	return result.ItemSummaries, nil
}

// doWithRateLimitRetry executes the request once, and on 429 sleeps for the
// advertised (bounded) reset interval and retries exactly once. Any other
// outcome is returned as-is; callers degrade a failed call to zero comps.
func doWithRateLimitRetry(ctx context.Context, hc *http.Client, req *http.Request) ([]byte, int, error) {
	const maxCooldown = 60 * time.Second

	body, status, hdr, err := do(hc, req.Clone(ctx))
	if err != nil || status != http.StatusTooManyRequests {
		return body, status, err
	}

	cooldown := retryAfter(hdr, maxCooldown)
	zap.L().Warn("search backend rate limited, backing off",
		zap.String("host", req.URL.Host),
		zap.Duration("cooldown", cooldown),
	)
	select {
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case <-time.After(cooldown):
	}
	body, status, _, err = do(hc, req.Clone(ctx))
	return body, status, err
}

func do(hc *http.Client, req *http.Request) ([]byte, int, http.Header, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, resp.Header, eris.Wrap(err, "read response body")
	}
	return body, resp.StatusCode, resp.Header, nil
}

func retryAfter(hdr http.Header, max time.Duration) time.Duration {
	if s := hdr.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			d := time.Duration(secs) * time.Second
			if d < max {
				return d
			}
			return max
		}
	}
	return 5 * time.Second
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
