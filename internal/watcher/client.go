package watcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/w3f/polkadot-registrar-bot/internal/domain"
)

// Client submits judgements to the chain watcher's HTTP endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type judgementRequest struct {
	Address   domain.NetworkAddress `json:"net_address"`
	Judgement string                `json:"judgement"`
}

func (c *Client) SubmitJudgement(ctx context.Context, address domain.NetworkAddress) error {
	body, err := json.Marshal(judgementRequest{Address: address, Judgement: "reasonable"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/judgement", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submit judgement for %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("submit judgement for %s: watcher returned %s", address, resp.Status)
	}
	return nil
}
