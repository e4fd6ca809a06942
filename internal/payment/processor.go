// Package payment simulates the settlement step of a checkout.
package payment

import (
	"context"
	"strings"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("payment")

// Processor waits out a fixed processing delay before a checkout settles.
type Processor struct {
	Delay      time.Duration
	PayBaseURL string
}

// Process blocks for the configured delay. It returns ctx.Err() if the
// context ends first, in which case nothing must be recorded.
func (p Processor) Process(ctx context.Context, method model.PaymentMethod, total decimal.Decimal) error {
	ctx, span := tracer.Start(ctx, "payment.process")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.method", string(method)),
		attribute.String("payment.total", total.StringFixed(2)),
	)
	if p.Delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// QRISURL returns the pay link shown for a QRIS checkout of total.
func (p Processor) QRISURL(total decimal.Decimal) string {
	if p.PayBaseURL == "" {
		return ""
	}
	return strings.TrimRight(p.PayBaseURL, "/") + "/" + total.StringFixed(2)
}
