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

// OrdersClient talks to the order/transaction ledger.
type OrdersClient struct {
	baseURL string
	client  *http.Client
}

// NewOrdersClient creates a client for the order ledger at baseURL.
func NewOrdersClient(baseURL string) *OrdersClient {
	return &OrdersClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// GetActivities fetches all BUY/SELL activities for a user.
func (c *OrdersClient) GetActivities(ctx context.Context, userID string) ([]Activity, error) {
	endpoint := fmt.Sprintf("%s/api/v1/orders?%s", c.baseURL, url.Values{"userId": {userID}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build orders request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch orders")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, errors.Errorf("order ledger returned %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Activities []Activity `json:"activities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return payload.Activities, nil
}
