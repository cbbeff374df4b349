// Package payment implements the checkout.PaymentGateway interface on top of
// a Razorpay-compatible HTTP API.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/storefront/internal/domain/checkout"
)

const defaultTimeout = 20 * time.Second

// Config holds the gateway endpoint and credentials.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

var _ checkout.PaymentGateway = (*Client)(nil)

// Client talks to the payment gateway over HTTP with basic auth.
type Client struct {
	baseURL string
	keyID   string
	secret  string
	http    *http.Client
}

// NewClient builds a Client from cfg. The underlying transport is traced.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("payment: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, errors.Wrap(err, "payment: invalid base URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		keyID:   cfg.KeyID,
		secret:  cfg.KeySecret,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens a gateway order for the given amount in minor units.
func (c *Client) CreateOrder(ctx context.Context, req checkout.GatewayOrderRequest) (checkout.GatewayOrder, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return checkout.GatewayOrder{}, errors.Wrap(err, "encoding order request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return checkout.GatewayOrder{}, errors.Wrap(err, "building order request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.secret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return checkout.GatewayOrder{}, errors.Wrap(err, "calling payment gateway")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return checkout.GatewayOrder{}, decodeError(resp)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return checkout.GatewayOrder{}, errors.Wrap(err, "decoding gateway response")
	}
	if out.ID == "" {
		return checkout.GatewayOrder{}, errors.New("gateway returned empty order id")
	}
	return checkout.GatewayOrder{ID: out.ID}, nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var ge gatewayError
	if err := json.Unmarshal(data, &ge); err == nil && ge.Error.Description != "" {
		return errors.Errorf("payment gateway: %s (%s)", ge.Error.Description, ge.Error.Code)
	}
	return errors.Errorf("payment gateway: unexpected status %d", resp.StatusCode)
}
