package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/meridian-dms/meridian-dms/internal/observability"
)

// GatewaySender is the provider-facing half of the dispatcher.
type GatewaySender interface {
	Send(ctx context.Context, phone, body string) error
}

// RetryEnqueuer hands failed sends to the background queue.
type RetryEnqueuer interface {
	EnqueueSMSRetry(ctx context.Context, phone, body string) error
}

// Dispatcher composes order event messages and delivers them through the
// gateway. A nil gateway disables delivery without disabling the callers.
type Dispatcher struct {
	gateway     GatewaySender
	retries     RetryEnqueuer
	metrics     *observability.Metrics
	countryCode string
	printer     *message.Printer
	logger      *slog.Logger
}

func NewDispatcher(gateway GatewaySender, retries RetryEnqueuer, metrics *observability.Metrics, countryCode string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		gateway:     gateway,
		retries:     retries,
		metrics:     metrics,
		countryCode: countryCode,
		printer:     message.NewPrinter(language.English),
		logger:      logger,
	}
}

// OrderPlaced notifies the shop that a sales rep recorded a new order.
func (d *Dispatcher) OrderPlaced(ctx context.Context, phone string, orderID int64, shopName string, total decimal.Decimal) Outcome {
	body := fmt.Sprintf("Order #%d placed for %s. Total Ks %s. Awaiting approval.", orderID, shopName, d.money(total))
	return d.deliver(ctx, phone, body)
}

// OrderApproved notifies the shop that its order was approved.
func (d *Dispatcher) OrderApproved(ctx context.Context, phone string, orderID int64, total decimal.Decimal) Outcome {
	body := fmt.Sprintf("Order #%d approved. Total Ks %s.", orderID, d.money(total))
	return d.deliver(ctx, phone, body)
}

// OrderRejected notifies the shop that its order was rejected and why.
func (d *Dispatcher) OrderRejected(ctx context.Context, phone string, orderID int64, reason string) Outcome {
	body := fmt.Sprintf("Order #%d rejected: %s", orderID, reason)
	return d.deliver(ctx, phone, body)
}

// PaymentReceived confirms a payment and the remaining balance.
func (d *Dispatcher) PaymentReceived(ctx context.Context, phone string, orderID int64, amount, outstanding decimal.Decimal) Outcome {
	body := fmt.Sprintf("Payment of Ks %s received for order #%d. Outstanding Ks %s.", d.money(amount), orderID, d.money(outstanding))
	return d.deliver(ctx, phone, body)
}

// ReturnRecorded confirms a return and the adjusted order total.
func (d *Dispatcher) ReturnRecorded(ctx context.Context, phone string, orderID int64, newTotal decimal.Decimal) Outcome {
	body := fmt.Sprintf("Return recorded for order #%d. New total Ks %s.", orderID, d.money(newTotal))
	return d.deliver(ctx, phone, body)
}

func (d *Dispatcher) deliver(ctx context.Context, phone, body string) Outcome {
	if d.gateway == nil {
		d.metrics.CountSMSDelivery("skipped")
		return Outcome{Error: "sms gateway disabled"}
	}
	normalized, err := NormalizePhone(phone, d.countryCode)
	if err != nil {
		d.metrics.CountSMSDelivery("failed")
		d.logger.Warn("sms recipient rejected", slog.String("phone", phone), slog.Any("error", err))
		return Outcome{Error: err.Error()}
	}
	if err := d.gateway.Send(ctx, normalized, body); err != nil {
		d.metrics.CountSMSDelivery("failed")
		d.logger.Warn("sms send failed", slog.String("phone", normalized), slog.Any("error", err))
		if d.retries != nil {
			if enqErr := d.retries.EnqueueSMSRetry(ctx, normalized, body); enqErr != nil {
				d.logger.Error("sms retry enqueue failed", slog.Any("error", enqErr))
			}
		}
		return Outcome{Error: err.Error()}
	}
	d.metrics.CountSMSDelivery("sent")
	return Outcome{Sent: true}
}

func (d *Dispatcher) money(amount decimal.Decimal) string {
	value, _ := amount.Float64()
	return d.printer.Sprintf("%v", number.Decimal(value, number.MaxFractionDigits(2)))
}
