// Package shipping implements the checkout.ShippingCarrier interface on top
// of a Shiprocket-compatible HTTP API.
package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/storefront/internal/domain/checkout"
)

const (
	defaultTimeout = 30 * time.Second

	// Carrier tokens are valid for days; refresh well before expiry.
	tokenTTL = 8 * 24 * time.Hour
)

// Config holds the carrier endpoint and account credentials.
type Config struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
}

var _ checkout.ShippingCarrier = (*Client)(nil)

// Client talks to the shipping carrier over HTTP. Authentication tokens are
// obtained lazily and cached until close to expiry.
type Client struct {
	baseURL string
	email   string
	pass    string
	http    *http.Client

	mu         sync.Mutex
	token      string
	tokenUntil time.Time
}

// NewClient builds a Client from cfg. The underlying transport is traced.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("shipping: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: cfg.BaseURL,
		email:   cfg.Email,
		pass:    cfg.Password,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type authRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string `json:"token"`
}

type orderItem struct {
	Name  string `json:"name"`
	SKU   string `json:"sku"`
	Units int    `json:"units"`
	Price string `json:"selling_price"`
}

type createOrderRequest struct {
	OrderID         string      `json:"order_id"`
	OrderDate       string      `json:"order_date"`
	PaymentMethod   string      `json:"payment_method"`
	BillingName     string      `json:"billing_customer_name"`
	BillingAddress  string      `json:"billing_address"`
	BillingCity     string      `json:"billing_city"`
	BillingState    string      `json:"billing_state"`
	BillingPincode  string      `json:"billing_pincode"`
	BillingCountry  string      `json:"billing_country"`
	BillingPhone    string      `json:"billing_phone"`
	ShippingSame    bool        `json:"shipping_is_billing"`
	ShippingName    string      `json:"shipping_customer_name,omitempty"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	ShippingCity    string      `json:"shipping_city,omitempty"`
	ShippingState   string      `json:"shipping_state,omitempty"`
	ShippingPincode string      `json:"shipping_pincode,omitempty"`
	ShippingCountry string      `json:"shipping_country,omitempty"`
	ShippingPhone   string      `json:"shipping_phone,omitempty"`
	Items           []orderItem `json:"order_items"`
	Length          float64     `json:"length"`
	Breadth         float64     `json:"breadth"`
	Height          float64     `json:"height"`
	Weight          float64     `json:"weight"`
}

type createOrderResponse struct {
	OrderID    json.Number `json:"order_id"`
	ShipmentID json.Number `json:"shipment_id"`
	AWBCode    string      `json:"awb_code"`
	Courier    string      `json:"courier_name"`
}

// CreateShipmentOrder registers the order with the carrier and returns the
// identifiers to persist.
func (c *Client) CreateShipmentOrder(ctx context.Context, req checkout.ShipmentRequest) (checkout.ShipmentResult, error) {
	token, err := c.authToken(ctx)
	if err != nil {
		return checkout.ShipmentResult{}, err
	}

	payload := buildOrderRequest(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return checkout.ShipmentResult{}, errors.Wrap(err, "encoding shipment request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/external/orders/create/adhoc", bytes.NewReader(body))
	if err != nil {
		return checkout.ShipmentResult{}, errors.Wrap(err, "building shipment request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return checkout.ShipmentResult{}, errors.Wrap(err, "calling shipping carrier")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return checkout.ShipmentResult{}, errors.Errorf("shipping carrier: unexpected status %d", resp.StatusCode)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return checkout.ShipmentResult{}, errors.Wrap(err, "decoding carrier response")
	}
	return checkout.ShipmentResult{
		CarrierOrderID: out.OrderID.String(),
		ShipmentID:     out.ShipmentID.String(),
		TrackingNumber: out.AWBCode,
		CourierName:    out.Courier,
	}, nil
}

func buildOrderRequest(req checkout.ShipmentRequest) createOrderRequest {
	out := createOrderRequest{
		OrderID:        req.OrderNumber,
		OrderDate:      time.Now().Format("2006-01-02 15:04"),
		PaymentMethod:  req.PaymentMethod,
		BillingName:    req.BillingAddress.Name,
		BillingAddress: joinLines(req.BillingAddress.Line1, req.BillingAddress.Line2),
		BillingCity:    req.BillingAddress.City,
		BillingState:   req.BillingAddress.State,
		BillingPincode: req.BillingAddress.PostalCode,
		BillingCountry: req.BillingAddress.Country,
		BillingPhone:   req.BillingAddress.Phone,
		ShippingSame:   req.ShippingAddress == req.BillingAddress,
	}
	if !out.ShippingSame {
		out.ShippingName = req.ShippingAddress.Name
		out.ShippingAddress = joinLines(req.ShippingAddress.Line1, req.ShippingAddress.Line2)
		out.ShippingCity = req.ShippingAddress.City
		out.ShippingState = req.ShippingAddress.State
		out.ShippingPincode = req.ShippingAddress.PostalCode
		out.ShippingCountry = req.ShippingAddress.Country
		out.ShippingPhone = req.ShippingAddress.Phone
	}
	for _, item := range req.Items {
		out.Items = append(out.Items, orderItem{
			Name:  item.Name,
			SKU:   item.SKU,
			Units: item.Units,
			Price: item.Price,
		})
		// The payload carries a single parcel dimension; keep the largest.
		out.Length = max(out.Length, item.LengthCm)
		out.Breadth = max(out.Breadth, item.WidthCm)
		out.Height = max(out.Height, item.HeightCm)
		out.Weight += item.WeightKg * float64(item.Units)
	}
	return out
}

func joinLines(line1, line2 string) string {
	if line2 == "" {
		return line1
	}
	return line1 + ", " + line2
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenUntil) {
		return c.token, nil
	}

	body, err := json.Marshal(authRequest{Email: c.email, Password: c.pass})
	if err != nil {
		return "", errors.Wrap(err, "encoding auth request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/external/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building auth request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "authenticating with carrier")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("carrier auth: unexpected status %d", resp.StatusCode)
	}
	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decoding auth response")
	}
	if out.Token == "" {
		return "", errors.New("carrier auth: empty token")
	}
	c.token = out.Token
	c.tokenUntil = time.Now().Add(tokenTTL - time.Hour)
	return c.token, nil
}
