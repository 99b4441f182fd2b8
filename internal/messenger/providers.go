// Package messenger delivers outbound WhatsApp replies.
package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const channel = "whatsapp"

type Provider interface {
	Send(ctx context.Context, phone, text string) error
}

type Options struct {
	Kind       string
	WebhookURL string
	Token      string
	Timeout    time.Duration
}

// New picks a provider by kind. Unknown kinds and a webhook without a URL
// fall back to logging.
func New(opts Options) Provider {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "stub", "log":
		return logProvider{}
	case "noop":
		return noopProvider{}
	case "fail":
		return failProvider{}
	case "webhook":
		if opts.WebhookURL == "" {
			return logProvider{}
		}
		return newWebhookProvider(opts.WebhookURL, opts.Token, opts.Timeout)
	default:
		if strings.HasPrefix(opts.Kind, "http://") || strings.HasPrefix(opts.Kind, "https://") {
			return newWebhookProvider(opts.Kind, opts.Token, opts.Timeout)
		}
		return logProvider{}
	}
}

type logProvider struct{}

func (logProvider) Send(ctx context.Context, phone, text string) error {
	log.Printf("send %s to %s: %s", channel, phone, text)
	return nil
}

type noopProvider struct{}

func (noopProvider) Send(ctx context.Context, phone, text string) error {
	return nil
}

type failProvider struct{}

func (failProvider) Send(ctx context.Context, phone, text string) error {
	return errors.New("provider failure")
}

type webhookProvider struct {
	url    string
	token  string
	client *http.Client
}

func newWebhookProvider(url, token string, timeout time.Duration) webhookProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return webhookProvider{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (p webhookProvider) Send(ctx context.Context, phone, text string) error {
	body, err := json.Marshal(map[string]string{
		"channel":   channel,
		"recipient": phone,
		"message":   text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("provider rejected request: status %d", resp.StatusCode)
	}
	return nil
}
