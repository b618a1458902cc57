// Package hiro talks to the Hiro Ordinals API: it lists the inscriptions of
// an address and downloads inscription content.
package hiro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rubiojr/ordframe/pkg/log"
	"github.com/rubiojr/ordframe/pkg/ordinals"
	"github.com/rubiojr/ordframe/pkg/store"
	"github.com/rubiojr/ordframe/pkg/version"
)

const (
	// PageLimit is the largest page the API serves.
	PageLimit = 60
	// MaxOffset stops pagination for very large wallets.
	MaxOffset = 1000
)

var logger = log.ForService("hiro")

// ErrContentTooLarge is returned when inscription content exceeds the
// configured limit.
var ErrContentTooLarge = errors.New("content too large")

// Cache is the response cache the client consults before calling the API.
// *store.Store implements it.
type Cache interface {
	CacheGet(ctx context.Context, key string) (store.CacheEntry, error)
	CachePut(ctx context.Context, key, contentType string, payload []byte, ttl time.Duration) error
}

// Options configures a Client. Zero values take the defaults.
type Options struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	ListCacheTTL    time.Duration
	ContentCacheTTL time.Duration
	MaxContentBytes int64
	HTTPClient      *http.Client
	Cache           Cache
}

type Client struct {
	opts      Options
	http      *http.Client
	sanitizer *bluemonday.Policy
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.hiro.so/ordinals/v1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = time.Second
	}
	if opts.ListCacheTTL <= 0 {
		opts.ListCacheTTL = time.Hour
	}
	if opts.ContentCacheTTL <= 0 {
		opts.ContentCacheTTL = 24 * time.Hour
	}
	if opts.MaxContentBytes <= 0 {
		opts.MaxContentBytes = 50 * 1024 * 1024
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		opts:      opts,
		http:      hc,
		sanitizer: bluemonday.StrictPolicy(),
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StatusError is a non-2xx API response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hiro API returned status %d for %s", e.StatusCode, e.URL)
}

// retryable reports whether a failed request is worth repeating. Client
// errors other than rate limiting are final.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

// do performs a GET with retries and exponential backoff and returns the
// response body and content type.
func (c *Client) do(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		logger.Debugf("GET %s (attempt %d)", rawURL, attempt+1)
		body, contentType, err := c.get(ctx, rawURL, limit)
		if err == nil {
			return body, contentType, nil
		}
		lastErr = err
		if ctx.Err() != nil || !retryable(err) || errors.Is(err, ErrContentTooLarge) {
			return nil, "", err
		}
		if attempt < c.opts.MaxRetries-1 {
			wait := c.opts.RetryBackoff * (1 << uint(attempt))
			logger.Warnf("request failed (%v), retrying in %s", err, wait)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, "", err
			}
		}
	}
	return nil, "", fmt.Errorf("after %d attempts: %w", c.opts.MaxRetries, lastErr)
}

func (c *Client) get(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if c.opts.APIKey != "" {
		req.Header.Set("x-api-key", c.opts.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("making request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warnf("failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	if resp.ContentLength > limit {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrContentTooLarge, resp.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading response: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrContentTooLarge, limit)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// inscription is the raw API record. Numeric fields arrive as numbers or
// strings depending on the endpoint version.
type inscription struct {
	ID                 string         `json:"id"`
	Number             flexInt        `json:"number"`
	Address            string         `json:"address"`
	ContentType        string         `json:"content_type"`
	ContentLength      flexInt        `json:"content_length"`
	Timestamp          flexInt        `json:"timestamp"`
	SatOrdinal         flexString     `json:"sat_ordinal"`
	SatRarity          string         `json:"sat_rarity"`
	GenesisFee         flexInt        `json:"genesis_fee"`
	Value              flexInt        `json:"value"`
	GenesisBlockHeight flexInt        `json:"genesis_block_height"`
	GenesisTxID        string         `json:"genesis_tx_id"`
	CollectionSlug     string         `json:"collection_slug"`
	Metadata           map[string]any `json:"metadata"`
}

type listResponse struct {
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	Total   int           `json:"total"`
	Results []inscription `json:"results"`
}

// FetchAddressInscriptions returns every inscription held by address,
// following pagination. Results are cached per address.
func (c *Client) FetchAddressInscriptions(ctx context.Context, address string) ([]ordinals.Ordinal, error) {
	cacheKey := "inscriptions_" + address
	if c.opts.Cache != nil {
		if entry, err := c.opts.Cache.CacheGet(ctx, cacheKey); err == nil {
			var cached []ordinals.Ordinal
			if err := json.Unmarshal(entry.Payload, &cached); err == nil {
				logger.Infof("using cached data for address %s", address)
				return cached, nil
			}
		}
	}

	logger.Infof("fetching inscriptions for address %s", address)

	var all []inscription
	offset := 0
	for {
		q := url.Values{}
		q.Set("address", address)
		q.Set("limit", strconv.Itoa(PageLimit))
		q.Set("offset", strconv.Itoa(offset))
		body, _, err := c.do(ctx, c.opts.BaseURL+"/inscriptions?"+q.Encode(), c.opts.MaxContentBytes)
		if err != nil {
			return nil, fmt.Errorf("fetching inscriptions page at offset %d: %w", offset, err)
		}

		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decoding inscriptions page: %w", err)
		}
		if len(page.Results) == 0 {
			break
		}
		all = append(all, page.Results...)
		if len(page.Results) < PageLimit {
			break
		}

		offset += PageLimit
		if offset > MaxOffset {
			logger.Warnf("stopping pagination after %d inscriptions", MaxOffset)
			break
		}
	}

	processed := make([]ordinals.Ordinal, 0, len(all))
	for _, raw := range all {
		if o, ok := c.process(raw); ok {
			processed = append(processed, o)
		}
	}

	if c.opts.Cache != nil {
		if payload, err := json.Marshal(processed); err == nil {
			if err := c.opts.Cache.CachePut(ctx, cacheKey, "application/json", payload, c.opts.ListCacheTTL); err != nil {
				logger.Warnf("caching inscriptions for %s: %v", address, err)
			}
		}
	}

	logger.Infof("found %d inscriptions for %s", len(processed), address)
	return processed, nil
}

// process turns a raw record into an Ordinal. Records without an id are
// dropped. Rarity and collection names are stripped of markup.
func (c *Client) process(raw inscription) (ordinals.Ordinal, bool) {
	if raw.ID == "" {
		return ordinals.Ordinal{}, false
	}
	o := ordinals.Ordinal{
		ID:             raw.ID,
		Number:         int64(raw.Number),
		Address:        raw.Address,
		ContentType:    raw.ContentType,
		ContentLength:  int64(raw.ContentLength),
		ContentURL:     c.ContentURL(raw.ID),
		Timestamp:      int64(raw.Timestamp),
		SatOrdinal:     string(raw.SatOrdinal),
		SatRarity:      c.stripTags(raw.SatRarity),
		Fee:            int64(raw.GenesisFee),
		Value:          int64(raw.Value),
		BlockHeight:    int64(raw.GenesisBlockHeight),
		TxID:           raw.GenesisTxID,
		CollectionSlug: c.stripTags(raw.CollectionSlug),
		Metadata:       raw.Metadata,
	}
	if o.ContentType == "" {
		o.ContentType = "unknown"
	}
	if o.SatRarity == "" {
		o.SatRarity = ordinals.RarityCommon
	}
	if o.Metadata == nil {
		o.Metadata = map[string]any{}
	}
	return o, true
}

// stripTags removes markup but keeps plain text as is. Escaping is left to
// whatever renders the value.
func (c *Client) stripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(s)))
}

// ContentURL is the upstream URL of an inscription's content.
func (c *Client) ContentURL(id string) string {
	return c.opts.BaseURL + "/inscriptions/" + url.PathEscape(id) + "/content"
}

// Content is downloaded inscription content.
type Content struct {
	ContentType string
	Body        []byte
}

// FetchContent downloads the content of an inscription, consulting the
// cache first. Bodies over the configured limit fail with
// ErrContentTooLarge.
func (c *Client) FetchContent(ctx context.Context, id string) (Content, error) {
	cacheKey := "content_" + id
	if c.opts.Cache != nil {
		if entry, err := c.opts.Cache.CacheGet(ctx, cacheKey); err == nil {
			return Content{ContentType: entry.ContentType, Body: entry.Payload}, nil
		}
	}

	body, contentType, err := c.do(ctx, c.ContentURL(id), c.opts.MaxContentBytes)
	if err != nil {
		return Content{}, fmt.Errorf("fetching content of %s: %w", id, err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if c.opts.Cache != nil {
		if err := c.opts.Cache.CachePut(ctx, cacheKey, contentType, body, c.opts.ContentCacheTTL); err != nil {
			logger.Warnf("caching content of %s: %v", id, err)
		}
	}
	return Content{ContentType: contentType, Body: body}, nil
}
