package gasoracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client fetches a suggested gas price from an etherscan-style gastracker
// endpoint. Purely informational; the relay logs the value and moves on.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type gasOracleResponse struct {
	Result struct {
		ProposeGasPrice string `json:"ProposeGasPrice"`
	} `json:"result"`
}

// SuggestedGasPrice returns the oracle's proposed gas price in gwei.
func (c *Client) SuggestedGasPrice(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return "", fmt.Errorf("build oracle request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("query gas oracle: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gas oracle status %d", resp.StatusCode)
	}

	var parsed gasOracleResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse oracle response: %w", err)
	}
	if parsed.Result.ProposeGasPrice == "" {
		return "", fmt.Errorf("gas oracle returned no price")
	}
	return parsed.Result.ProposeGasPrice, nil
}
