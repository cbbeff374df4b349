package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/order"
)

// Webhook event types emitted by the payment gateway.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// webhookEvent is the decoded gateway event envelope.
type webhookEvent struct {
	Type             string
	GatewayOrderID   string
	GatewayPaymentID string
}

// HandleWebhook processes an asynchronous gateway event. The raw body is
// authenticated with the dedicated webhook secret; payment.captured drives
// the same confirmation path as the synchronous callback so a lost
// client-side callback still completes the order, and payment.failed marks
// the payment failed while it is still pending.
func (c *Coordinator) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !VerifyWebhookSignature(c.webhookSecret, body, signature) {
		return ErrInvalidSignature
	}

	ev, err := decodeWebhookEvent(body)
	if err != nil {
		return errors.Wrap(err, "decode webhook event")
	}

	switch ev.Type {
	case EventPaymentCaptured:
		o, err := c.orders.GetByGatewayOrderID(ctx, ev.GatewayOrderID)
		if err != nil {
			return errors.Wrapf(err, "resolve gateway order %s", ev.GatewayOrderID)
		}
		return c.confirm(ctx, o, ev.GatewayPaymentID)

	case EventPaymentFailed:
		o, err := c.orders.GetByGatewayOrderID(ctx, ev.GatewayOrderID)
		if err != nil {
			return errors.Wrapf(err, "resolve gateway order %s", ev.GatewayOrderID)
		}
		if err := c.orders.MarkPaymentFailed(ctx, o.ID); err != nil {
			if errors.Is(err, order.ErrPaymentNotPending) {
				c.lg.Info("ignoring payment.failed for settled order",
					zap.String("order_id", o.ID))
				return nil
			}
			return err
		}
		return nil

	default:
		c.lg.Info("ignoring webhook event", zap.String("event", ev.Type))
		return nil
	}
}

func decodeWebhookEvent(body []byte) (webhookEvent, error) {
	var ev webhookEvent
	d := jx.DecodeBytes(body)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "event":
			s, err := d.Str()
			ev.Type = s
			return err
		case "payload":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "order_id":
					s, err := d.Str()
					ev.GatewayOrderID = s
					return err
				case "payment_id":
					s, err := d.Str()
					ev.GatewayPaymentID = s
					return err
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return webhookEvent{}, err
	}
	if ev.Type == "" {
		return webhookEvent{}, errors.New("missing event type")
	}
	return ev, nil
}
