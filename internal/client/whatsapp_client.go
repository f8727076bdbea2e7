package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("client not configured")

// WhatsAppClient posts text messages to a WhatsApp Business style HTTP API.
type WhatsAppClient struct {
	url    string
	token  string
	client *http.Client
}

func NewWhatsAppClient(url, token string, timeout time.Duration) *WhatsAppClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &WhatsAppClient{
		url:   strings.TrimSpace(url),
		token: token,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type whatsAppText struct {
	Body string `json:"body"`
}

type whatsAppRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             whatsAppText `json:"text"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers one text message and returns the provider's message id.
func (c *WhatsAppClient) Send(ctx context.Context, phone, message string) (string, error) {
	if c.url == "" {
		return "", fmt.Errorf("%w: WHATSAPP_API_URL is empty", ErrNotConfigured)
	}

	reqBody, err := json.Marshal(whatsAppRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             whatsAppText{Body: message},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var wr whatsAppResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if len(wr.Messages) == 0 || wr.Messages[0].ID == "" {
		return "", fmt.Errorf("missing message id in response body=%q", string(body))
	}

	return wr.Messages[0].ID, nil
}
