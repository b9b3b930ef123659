package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrChannel = attribute.Key("channel")
	AttrReason  = attribute.Key("reason")
	AttrMode    = attribute.Key("mode")
)

// Checkout modes
const (
	CheckoutModeIncremental = "incremental"
	CheckoutModeAtomic      = "atomic"
)

// RetailMetrics tracks sales, checkout failures, restocks and stock health.
type RetailMetrics struct {
	salesTotal        *Counter
	salesAmountCents  *Counter
	checkoutFailures  *Counter
	restockedUnits    *Counter
	compensations     *Counter
	checkoutDuration  *Histogram
	lowStockProducts  *Gauge
	expiringBatches   *Gauge
	expiredBatches    *Gauge
	outOfStockProduct *Gauge
}

// NewRetailMetrics registers the retail instruments on meter
func NewRetailMetrics(meter metric.Meter) (*RetailMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	var (
		m   RetailMetrics
		err error
	)
	if m.salesTotal, err = NewCounter(meter, "retail_sales_total", "Finalized sales", "{bills}"); err != nil {
		return nil, err
	}
	if m.salesAmountCents, err = NewCounter(meter, "retail_sales_amount_total", "Finalized sales amount in cents", "{cents}"); err != nil {
		return nil, err
	}
	if m.checkoutFailures, err = NewCounter(meter, "retail_checkout_failures_total", "Checkouts rejected or failed", "{checkouts}"); err != nil {
		return nil, err
	}
	if m.restockedUnits, err = NewCounter(meter, "retail_restocked_units_total", "Units moved from the batch ledger into a channel", "{units}"); err != nil {
		return nil, err
	}
	if m.compensations, err = NewCounter(meter, "retail_stock_compensations_total", "Committed allocations released after a failed commit", "{plans}"); err != nil {
		return nil, err
	}
	if m.checkoutDuration, err = NewHistogram(meter, "retail_checkout_duration_seconds", "Checkout commit duration", "s",
		0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5); err != nil {
		return nil, err
	}
	if m.lowStockProducts, err = NewGauge(meter, "retail_low_stock_products", "Products below the low-stock threshold", "{products}"); err != nil {
		return nil, err
	}
	if m.outOfStockProduct, err = NewGauge(meter, "retail_out_of_stock_products", "Products with no stock in a channel", "{products}"); err != nil {
		return nil, err
	}
	if m.expiringBatches, err = NewGauge(meter, "retail_expiring_batches", "Batches with stock expiring soon", "{batches}"); err != nil {
		return nil, err
	}
	if m.expiredBatches, err = NewGauge(meter, "retail_expired_batches", "Expired batches with stock remaining", "{batches}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordSale counts a finalized bill and its total
func (m *RetailMetrics) RecordSale(ctx context.Context, channel, mode string, total decimal.Decimal, elapsed time.Duration) {
	attrs := []attribute.KeyValue{AttrChannel.String(channel), AttrMode.String(mode)}
	m.salesTotal.Inc(ctx, attrs...)
	m.salesAmountCents.Add(ctx, total.Shift(2).Round(0).IntPart(), attrs...)
	m.checkoutDuration.RecordDuration(ctx, elapsed, attrs...)
}

// RecordCheckoutFailure counts a rejected checkout by reason code
func (m *RetailMetrics) RecordCheckoutFailure(ctx context.Context, channel, mode, reason string) {
	m.checkoutFailures.Inc(ctx, AttrChannel.String(channel), AttrMode.String(mode), AttrReason.String(reason))
}

// RecordRestock counts units restocked into a channel
func (m *RetailMetrics) RecordRestock(ctx context.Context, channel string, units int) {
	m.restockedUnits.Add(ctx, int64(units), AttrChannel.String(channel))
}

// RecordCompensation counts plans released after a failed commit
func (m *RetailMetrics) RecordCompensation(ctx context.Context, channel string, plans int) {
	m.compensations.Add(ctx, int64(plans), AttrChannel.String(channel))
}

// RecordStockHealth records the low and out-of-stock product counts of a channel
func (m *RetailMetrics) RecordStockHealth(ctx context.Context, channel string, low, out int) {
	m.lowStockProducts.Record(ctx, int64(low), AttrChannel.String(channel))
	m.outOfStockProduct.Record(ctx, int64(out), AttrChannel.String(channel))
}

// RecordExpiry records the expiring-soon and expired batch counts
func (m *RetailMetrics) RecordExpiry(ctx context.Context, expiring, expired int) {
	if expiring >= 0 {
		m.expiringBatches.Record(ctx, int64(expiring))
	}
	if expired >= 0 {
		m.expiredBatches.Record(ctx, int64(expired))
	}
}
