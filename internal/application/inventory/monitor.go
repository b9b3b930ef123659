package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"github.com/retail/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// MonitorConfig holds the stock monitor thresholds and schedules
type MonitorConfig struct {
	LowStockThreshold   int
	ExpiringSoonDays    int
	LowStockDelay       time.Duration
	LowStockInterval    time.Duration
	ExpiredCheckDelay   time.Duration
	ExpiredInterval     time.Duration
	SyncSummaryDelay    time.Duration
	SyncSummaryInterval time.Duration
}

// DefaultMonitorConfig returns the default thresholds and schedules
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		LowStockThreshold:   10,
		ExpiringSoonDays:    7,
		LowStockDelay:       time.Minute,
		LowStockInterval:    60 * time.Minute,
		ExpiredCheckDelay:   5 * time.Minute,
		ExpiredInterval:     24 * time.Hour,
		SyncSummaryDelay:    2 * time.Minute,
		SyncSummaryInterval: 30 * time.Minute,
	}
}

// LowStockReport is the result of one low-stock check
type LowStockReport struct {
	Threshold    int                                               `json:"threshold"`
	LowStock     map[inventory.Channel][]inventory.ProductQuantity `json:"low_stock"`
	ExpiringSoon int                                               `json:"expiring_soon"`
	CheckedAt    time.Time                                         `json:"checked_at"`
}

// ExpiredReport is the result of one expired-batch check
type ExpiredReport struct {
	ExpiredBatches int       `json:"expired_batches"`
	UnitsAffected  int       `json:"units_affected"`
	CheckedAt      time.Time `json:"checked_at"`
}

// ChannelHealth counts a channel's products by stock level
type ChannelHealth struct {
	InStock    int `json:"in_stock"`
	LowStock   int `json:"low_stock"`
	OutOfStock int `json:"out_of_stock"`
}

// SyncSummary is the result of one inventory sync summary
type SyncSummary struct {
	LedgerProducts int                                 `json:"ledger_products"`
	Channels       map[inventory.Channel]ChannelHealth `json:"channels"`
	CheckedAt      time.Time                           `json:"checked_at"`
}

// StockMonitor runs the periodic stock health checks.
// Nothing is written off automatically; findings are logged and exported as gauges.
type StockMonitor struct {
	batches inventory.BatchRepository
	stocks  *ChannelStocks
	config  MonitorConfig
	logger  *zap.Logger
	metrics *telemetry.RetailMetrics
	now     func() time.Time
}

// NewStockMonitor creates a new StockMonitor
func NewStockMonitor(
	batches inventory.BatchRepository,
	stocks *ChannelStocks,
	config MonitorConfig,
	logger *zap.Logger,
) *StockMonitor {
	return &StockMonitor{
		batches: batches,
		stocks:  stocks,
		config:  config,
		logger:  logger.Named("stock_monitor"),
		now:     time.Now,
	}
}

// SetRetailMetrics sets the metrics recorder (optional)
func (m *StockMonitor) SetRetailMetrics(metrics *telemetry.RetailMetrics) {
	m.metrics = metrics
}

// Register schedules the three checks on a periodic scheduler
func (m *StockMonitor) Register(ps *scheduler.PeriodicScheduler) error {
	tasks := []scheduler.PeriodicTask{
		{
			Name:         "low_stock_check",
			InitialDelay: m.config.LowStockDelay,
			Interval:     m.config.LowStockInterval,
			Run:          func(ctx context.Context) { _, _ = m.RunLowStockCheck(ctx) },
		},
		{
			Name:         "expired_batch_check",
			InitialDelay: m.config.ExpiredCheckDelay,
			Interval:     m.config.ExpiredInterval,
			Run:          func(ctx context.Context) { _, _ = m.RunExpiredCheck(ctx) },
		},
		{
			Name:         "inventory_sync_summary",
			InitialDelay: m.config.SyncSummaryDelay,
			Interval:     m.config.SyncSummaryInterval,
			Run:          func(ctx context.Context) { _, _ = m.RunSyncSummary(ctx) },
		},
	}
	for _, t := range tasks {
		if err := ps.Schedule(t); err != nil {
			return err
		}
	}
	return nil
}

// RunLowStockCheck lists products below the threshold on every channel,
// plus the batches expiring within the configured number of days.
func (m *StockMonitor) RunLowStockCheck(ctx context.Context) (*LowStockReport, error) {
	report := &LowStockReport{
		Threshold: m.config.LowStockThreshold,
		LowStock:  make(map[inventory.Channel][]inventory.ProductQuantity),
		CheckedAt: m.now(),
	}
	var errs []error

	for _, stock := range m.stocks.All() {
		ch := stock.Channel()
		low, err := stock.LowStock(ctx, m.config.LowStockThreshold)
		if err != nil {
			m.logger.Error("Low stock check failed", zap.String("channel", ch.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		report.LowStock[ch] = low

		out := 0
		for _, p := range low {
			if p.Quantity == 0 {
				out++
			}
			m.logger.Warn("Low stock alert",
				zap.String("channel", ch.String()),
				zap.String("product_code", p.ProductCode),
				zap.Int("quantity", p.Quantity),
			)
		}
		if m.metrics != nil {
			m.metrics.RecordStockHealth(ctx, ch.String(), len(low), out)
		}
	}

	today := inventory.DateOf(report.CheckedAt)
	expiring, err := m.batches.FindExpiringBetween(ctx, today, today.AddDate(0, 0, m.config.ExpiringSoonDays))
	if err != nil {
		m.logger.Error("Expiring batch lookup failed", zap.Error(err))
		errs = append(errs, err)
	} else {
		report.ExpiringSoon = len(expiring)
		if len(expiring) > 0 {
			m.logger.Warn("Batches expiring soon",
				zap.Int("count", len(expiring)),
				zap.Int("within_days", m.config.ExpiringSoonDays),
			)
		}
		if m.metrics != nil {
			m.metrics.RecordExpiry(ctx, len(expiring), -1)
		}
	}

	m.logger.Info("Low stock check completed", zap.Int("expiring_soon", report.ExpiringSoon))
	return report, errors.Join(errs...)
}

// RunExpiredCheck logs every expired batch that still holds stock
func (m *StockMonitor) RunExpiredCheck(ctx context.Context) (*ExpiredReport, error) {
	report := &ExpiredReport{CheckedAt: m.now()}
	expired, err := m.batches.FindExpired(ctx, inventory.DateOf(report.CheckedAt))
	if err != nil {
		m.logger.Error("Expired batch check failed", zap.Error(err))
		return nil, err
	}

	report.ExpiredBatches = len(expired)
	for _, b := range expired {
		report.UnitsAffected += b.QuantityRemaining
		m.logger.Warn("Expired batch",
			zap.String("batch_id", b.ID.String()),
			zap.String("product_code", b.ProductCode),
			zap.Int("remaining", b.QuantityRemaining),
			zap.Timep("expiry_date", b.ExpiryDate),
		)
	}
	if m.metrics != nil {
		m.metrics.RecordExpiry(ctx, -1, len(expired))
	}
	if len(expired) == 0 {
		m.logger.Info("No expired batches found")
	}
	return report, nil
}

// RunSyncSummary counts products in stock, low and out of stock per channel
func (m *StockMonitor) RunSyncSummary(ctx context.Context) (*SyncSummary, error) {
	summary := &SyncSummary{
		Channels:  make(map[inventory.Channel]ChannelHealth),
		CheckedAt: m.now(),
	}

	ledger, err := m.batches.Summary(ctx)
	if err != nil {
		m.logger.Error("Ledger summary failed", zap.Error(err))
		return nil, err
	}
	summary.LedgerProducts = len(ledger)

	for _, stock := range m.stocks.All() {
		rows, err := stock.Summary(ctx)
		if err != nil {
			m.logger.Error("Channel summary failed", zap.String("channel", stock.Channel().String()), zap.Error(err))
			return nil, err
		}
		var h ChannelHealth
		for _, r := range rows {
			switch {
			case r.Quantity == 0:
				h.OutOfStock++
			case r.Quantity < m.config.LowStockThreshold:
				h.LowStock++
			default:
				h.InStock++
			}
		}
		summary.Channels[stock.Channel()] = h
		m.logger.Info("Inventory sync summary",
			zap.String("channel", stock.Channel().String()),
			zap.Int("in_stock", h.InStock),
			zap.Int("low_stock", h.LowStock),
			zap.Int("out_of_stock", h.OutOfStock),
		)
	}
	return summary, nil
}
