// Package finding provides a client for the marketplace's legacy keyword
// search API. The API wraps every field in a single-element array and
// carries numbers as "__value__" strings; Item accessors hide that shape.
package finding

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client defines the keyword search operation.
type Client interface {
	// Search returns raw keyword-search items for a query.
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}

// Item is one raw keyword-search result.
type Item struct {
	Title         []string        `json:"title"`
	SellingStatus []sellingStatus `json:"sellingStatus"`
	ShippingInfo  []shippingInfo  `json:"shippingInfo"`
	ListingInfo   []listingInfo   `json:"listingInfo"`
	Condition     []condition     `json:"condition"`
}

type sellingStatus struct {
	CurrentPrice []wireValue `json:"currentPrice"`
}

type shippingInfo struct {
	ShippingServiceCost []wireValue `json:"shippingServiceCost"`
}

type listingInfo struct {
	ListingType []string `json:"listingType"`
}

type condition struct {
	ConditionDisplayName []string `json:"conditionDisplayName"`
}

type wireValue struct {
	Value string `json:"__value__"`
}

// TitleText returns the item title, or "".
func (it Item) TitleText() string {
	if len(it.Title) == 0 {
		return ""
	}
	return it.Title[0]
}

// Price returns the current item price, or 0.
func (it Item) Price() float64 {
	if len(it.SellingStatus) == 0 || len(it.SellingStatus[0].CurrentPrice) == 0 {
		return 0
	}
	return parseFloat(it.SellingStatus[0].CurrentPrice[0].Value)
}

// ShippingCost returns the cheapest advertised shipping cost, or 0.
func (it Item) ShippingCost() float64 {
	if len(it.ShippingInfo) == 0 || len(it.ShippingInfo[0].ShippingServiceCost) == 0 {
		return 0
	}
	return parseFloat(it.ShippingInfo[0].ShippingServiceCost[0].Value)
}

// ListingType returns the listing-type flag ("FixedPrice", "Auction", ...),
// or "".
func (it Item) ListingType() string {
	if len(it.ListingInfo) == 0 || len(it.ListingInfo[0].ListingType) == 0 {
		return ""
	}
	return it.ListingInfo[0].ListingType[0]
}

// ConditionName returns the display condition, or "".
func (it Item) ConditionName() string {
	if len(it.Condition) == 0 || len(it.Condition[0].ConditionDisplayName) == 0 {
		return ""
	}
	return it.Condition[0].ConditionDisplayName[0]
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

type findResponse struct {
	FindItemsByKeywordsResponse []struct {
		SearchResult []struct {
			Item []Item `json:"item"`
		} `json:"searchResult"`
	} `json:"findItemsByKeywordsResponse"`
}

// Option configures the finding client.
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
	appID   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a keyword-search client. The application ID is a hard
// precondition.
func NewClient(appID string, opts ...Option) (Client, error) {
	if appID == "" {
		return nil, eris.New("finding: missing application ID")
	}
	c := &httpClient{
		appID:   appID,
		baseURL: "https://svcs.ebay.com/services/search/FindingService/v1",
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

func (c *httpClient) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "finding: rate limiter")
	}

	params := url.Values{}
	params.Set("OPERATION-NAME", "findItemsByKeywords")
	params.Set("SERVICE-VERSION", "1.13.0")
	params.Set("SECURITY-APPNAME", c.appID)
	params.Set("RESPONSE-DATA-FORMAT", "JSON")
	params.Set("REST-PAYLOAD", "")
	params.Set("keywords", query)
	params.Set("paginationInput.entriesPerPage", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "finding: create request")
	}
	req.Header.Set("X-EBAY-SOA-REQUEST-DATA-FORMAT", "JSON")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "finding: request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "finding: read response body")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		// One bounded backoff then a single retry; callers already treat a
		// failed call as an empty result set.
		cooldown := 5 * time.Second
		if s := resp.Header.Get("Retry-After"); s != "" {
			if secs, convErr := strconv.Atoi(s); convErr == nil && secs > 0 && secs <= 60 {
				cooldown = time.Duration(secs) * time.Second
			}
		}
		zap.L().Warn("finding: rate limited, backing off", zap.Duration("cooldown", cooldown))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cooldown):
		}
		return c.searchOnce(ctx, req)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("finding: unexpected status %d", resp.StatusCode)
	}
	return parseItems(body)
}

func (c *httpClient) searchOnce(ctx context.Context, req *http.Request) ([]Item, error) {
	resp, err := c.http.Do(req.Clone(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "finding: retry failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "finding: read retry body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("finding: retry status %d", resp.StatusCode)
	}
	return parseItems(body)
}

func parseItems(body []byte) ([]Item, error) {
	var parsed findResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "finding: unmarshal response")
	}
	if len(parsed.FindItemsByKeywordsResponse) == 0 ||
		len(parsed.FindItemsByKeywordsResponse[0].SearchResult) == 0 {
		return nil, nil
	}
	return parsed.FindItemsByKeywordsResponse[0].SearchResult[0].Item, nil
}
