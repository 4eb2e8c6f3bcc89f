package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client posts plain text notifications somewhere people read them.
type Client interface {
	Send(ctx context.Context, text string) error
}

// WebhookClient is a resty-backed implementation of Client posting to a chat webhook.
type WebhookClient struct {
	httpClient *resty.Client
	url        string
}

// NewWebhookClient builds a client posting to webhookURL.
func NewWebhookClient(webhookURL string) *WebhookClient {
	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &WebhookClient{
		httpClient: restyClient,
		url:        strings.TrimSpace(webhookURL),
	}
}

// message is the payload understood by Slack and Mattermost style incoming webhooks.
type message struct {
	Text string `json:"text"`
}

// webhookError captures the common {"error": "..."} or {"message": "..."} bodies.
type webhookError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Send posts text to the webhook.
func (c *WebhookClient) Send(ctx context.Context, text string) error {
	apiErr := new(webhookError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(message{Text: text}).
		SetError(apiErr).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("post webhook notification: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		detail := apiErr.Error
		if detail == "" {
			detail = apiErr.Message
		}
		if detail == "" {
			detail = strings.TrimSpace(resp.String())
		}
		return fmt.Errorf("webhook error: status=%d, message=%s", resp.StatusCode(), detail)
	}

	return nil
}

// Nop drops every notification.
type Nop struct{}

// Send does nothing.
func (Nop) Send(context.Context, string) error { return nil }
