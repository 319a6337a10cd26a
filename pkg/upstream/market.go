package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/quantfolio/quantfolio/pkg/utils"
)

const symbolCacheTTL = 5 * time.Minute

// MarketClient talks to the symbol lookup service. When a redis client is
// configured, lookup results are cached; lookups tolerate cache failures.
type MarketClient struct {
	baseURL string
	client  *http.Client
	cache   *redis.Client
	logger  *slog.Logger
}

// NewMarketClient creates a client for the symbol lookup service at baseURL.
// cache may be nil to disable caching.
func NewMarketClient(baseURL string, cache *redis.Client) *MarketClient {
	return &MarketClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		cache:   cache,
		logger:  utils.GetLogger(),
	}
}

// SearchSymbols queries the lookup service for symbols matching query.
func (c *MarketClient) SearchSymbols(ctx context.Context, userID, query string) ([]SymbolMatch, error) {
	cacheKey := "symbol_lookup:" + query
	if c.cache != nil {
		if b, err := c.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []SymbolMatch
			if err := json.Unmarshal(b, &cached); err == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			c.logger.Warn("Symbol cache read failed", "error", err)
		}
	}

	params := url.Values{"query": {query}, "userId": {userID}}
	endpoint := fmt.Sprintf("%s/api/v1/symbol/lookup?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build symbol lookup request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch symbol lookup")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("symbol lookup returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Items []SymbolMatch `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode symbol lookup")
	}

	if c.cache != nil {
		if b, err := json.Marshal(payload.Items); err == nil {
			if err := c.cache.Set(ctx, cacheKey, b, symbolCacheTTL).Err(); err != nil {
				c.logger.Warn("Symbol cache write failed", "error", err)
			}
		}
	}

	return payload.Items, nil
}
