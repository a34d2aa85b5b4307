// Package remote is the HTTP client for the payment provider's order API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nathanbeddoewebdev/payq/internal/actionqueue"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
	userAgent      = "payq"
)

// Compile-time check that Client satisfies actionqueue.RemoteEffector.
var _ actionqueue.RemoteEffector = (*Client)(nil)

// Client implements actionqueue.RemoteEffector against the provider API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse is the envelope of every provider response.
type apiResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r apiResponse) err() error {
	switch r.Status {
	case "ok":
		return nil
	case "error":
		return &RejectedError{Code: r.Code, Message: r.Message}
	}
	return fmt.Errorf("%w: unexpected response status %q", ErrProtocol, r.Status)
}

// post sends body to the order endpoint and interprets the envelope.
func (c *Client) post(ctx context.Context, orderRef, action string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("remote: failed to encode request: %w", err)
	}

	endpoint := c.baseURL + "/orders/" + url.PathEscape(orderRef) + "/" + action
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("remote: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if key := actionqueue.IdempotencyKeyFromContext(ctx); key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}

	var out apiResponse
	decodeErr := json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %w: HTTP %d", ErrProtocol, ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w: HTTP %d", ErrProtocol, ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && decodeErr == nil && out.Status == "error":
		return out.err()
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: HTTP %d: %s", ErrProtocol, resp.StatusCode, snippet(raw))
	case decodeErr != nil:
		return fmt.Errorf("%w: failed to decode response: %w", ErrProtocol, decodeErr)
	}
	return out.err()
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// Confirm confirms the order with the provider.
func (c *Client) Confirm(ctx context.Context, orderRef string, _ map[string]string) error {
	return c.post(ctx, orderRef, "confirm", confirmRequest{OrderRef: orderRef})
}

// ReportShipped reports the shipment. Data must carry tracking_number.
func (c *Client) ReportShipped(ctx context.Context, orderRef string, data map[string]string) error {
	body, err := buildShipment(orderRef, data)
	if err != nil {
		return err
	}
	return c.post(ctx, orderRef, "shipments", body)
}

// CreateInvoice asks the provider to issue the invoice.
func (c *Client) CreateInvoice(ctx context.Context, orderRef string, data map[string]string) error {
	body, err := buildInvoice(orderRef, data)
	if err != nil {
		return err
	}
	return c.post(ctx, orderRef, "invoices", body)
}

// Cancel cancels the order with the provider.
func (c *Client) Cancel(ctx context.Context, orderRef string, data map[string]string) error {
	return c.post(ctx, orderRef, "cancel", cancelRequest{
		OrderRef: orderRef,
		Reason:   strings.TrimSpace(data[KeyReason]),
	})
}

// Refund refunds an amount. Data must carry amount.
func (c *Client) Refund(ctx context.Context, orderRef string, data map[string]string) error {
	body, err := buildRefund(orderRef, data)
	if err != nil {
		return err
	}
	return c.post(ctx, orderRef, "refunds", body)
}

// ReverseCancel undoes a cancellation.
func (c *Client) ReverseCancel(ctx context.Context, orderRef string, _ map[string]string) error {
	return c.post(ctx, orderRef, "cancel/reverse", confirmRequest{OrderRef: orderRef})
}
