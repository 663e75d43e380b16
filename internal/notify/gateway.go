package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRejected marks a permanent provider rejection. Replaying the same
// message cannot succeed.
var ErrRejected = errors.New("sms gateway rejected message")

// Gateway wraps the SMS provider's HTTP API.
type Gateway struct {
	baseURL    string
	token      string
	senderID   string
	httpClient *http.Client
}

// NewGateway constructs a new gateway client.
func NewGateway(baseURL, token, senderID string) *Gateway {
	return &Gateway{
		baseURL:  baseURL,
		token:    token,
		senderID: senderID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Ping checks if the remote gateway is available.
func (g *Gateway) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", g.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// Send delivers one message to one recipient.
func (g *Gateway) Send(ctx context.Context, phone, body string) error {
	payload, err := json.Marshal(map[string]string{
		"from": g.senderID,
		"to":   phone,
		"body": body,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/v1/messages", g.baseURL), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		if resp.StatusCode < 500 {
			return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, bytes.TrimSpace(snippet))
		}
		return fmt.Errorf("sms gateway returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
