// Package mailer delivers transactional email over SMTP. It implements both
// the checkout.Notifier and inventory.Alerter interfaces.
package mailer

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"gopkg.in/gomail.v2"

	"github.com/xenking/storefront/internal/domain/checkout"
	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/order"
)

var (
	_ checkout.Notifier = (*Mailer)(nil)
	_ inventory.Alerter = (*Mailer)(nil)
)

// Config holds SMTP connection settings and addressing defaults.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// Mailer sends messages through a single SMTP account. Each send dials a
// fresh connection; volumes here are low enough that pooling is not worth it.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
	admin  string
}

// New builds a Mailer from cfg.
func New(cfg Config) (*Mailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("mailer: host and from address are required")
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, port, cfg.Username, cfg.Password),
		from:   cfg.From,
		admin:  cfg.AdminEmail,
	}, nil
}

// SendOrderConfirmation mails the customer a summary of their paid order.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, o *order.Order) error {
	if o.CustomerEmail == "" {
		return errors.New("order has no customer email")
	}
	body := fmt.Sprintf(
		"Your order %s has been confirmed.\n\nItems:\n%sTotal: %s\n\nThank you for shopping with us.",
		o.Number, itemLines(o), o.TotalAmount.StringFixed(2),
	)
	return m.send(ctx, o.CustomerEmail, "Order confirmed: "+o.Number, body)
}

// SendShippingNotification mails the customer their tracking details.
func (m *Mailer) SendShippingNotification(ctx context.Context, o *order.Order) error {
	if o.CustomerEmail == "" {
		return errors.New("order has no customer email")
	}
	body := fmt.Sprintf(
		"Your order %s has shipped.\n\nCourier: %s\nTracking number: %s\n",
		o.Number, o.CourierName, o.TrackingNumber,
	)
	return m.send(ctx, o.CustomerEmail, "Order shipped: "+o.Number, body)
}

// SendCancellationNotice mails the customer that their order was cancelled.
func (m *Mailer) SendCancellationNotice(ctx context.Context, o *order.Order) error {
	if o.CustomerEmail == "" {
		return errors.New("order has no customer email")
	}
	body := fmt.Sprintf("Your order %s has been cancelled.", o.Number)
	if o.CancellationReason != "" {
		body += "\n\nReason: " + o.CancellationReason
	}
	return m.send(ctx, o.CustomerEmail, "Order cancelled: "+o.Number, body)
}

// SendLowStockAlert mails the store admin when a product's stock drops to or
// below the alert threshold.
func (m *Mailer) SendLowStockAlert(ctx context.Context, productName string, stock int) error {
	if m.admin == "" {
		return errors.New("no admin email configured")
	}
	body := fmt.Sprintf("Product %q is running low: %d units remaining.", productName, stock)
	return m.send(ctx, m.admin, "Low stock alert: "+productName, body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return errors.Wrapf(err, "sending %q to %s", subject, to)
	}
	return nil
}

func itemLines(o *order.Order) string {
	var out string
	for _, item := range o.Items {
		out += fmt.Sprintf("  %d x %s @ %s\n", item.Quantity, item.ProductName, item.UnitPrice.StringFixed(2))
	}
	return out
}
