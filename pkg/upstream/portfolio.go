package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

// PortfolioClient talks to the portfolio calculation engine.
type PortfolioClient struct {
	baseURL string
	client  *http.Client
}

// NewPortfolioClient creates a client for the portfolio engine at baseURL.
func NewPortfolioClient(baseURL string) *PortfolioClient {
	return &PortfolioClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// GetPortfolioDetails fetches the current holdings snapshot for a user.
func (c *PortfolioClient) GetPortfolioDetails(ctx context.Context, userID string) (*PortfolioDetails, error) {
	endpoint := fmt.Sprintf("%s/api/v1/portfolio/details?%s", c.baseURL, url.Values{"userId": {userID}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build portfolio details request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch portfolio details")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("portfolio engine returned %d: %s", resp.StatusCode, body)
	}

	var details PortfolioDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, errors.Wrap(err, "decode portfolio details")
	}
	return &details, nil
}
