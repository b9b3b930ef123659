package sales

import (
	"context"

	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

// BillArchive keeps a copy of every finalized bill outside the database
type BillArchive interface {
	Store(ctx context.Context, bill *sales.Bill) error
}

// SetArchive archives finalized bills on pool (optional).
// Archive failures are logged and never affect the sale.
func (s *Service) SetArchive(archive BillArchive, pool *scheduler.WorkerPool) {
	s.archive = archive
	s.archivePool = pool
}

func (s *Service) archiveAsync(bill *sales.Bill) {
	if s.archive == nil || s.archivePool == nil {
		return
	}
	snapshot := bill.Clone()
	logger := s.logger.With(
		zap.String("bill_id", snapshot.ID.String()),
		zap.String("serial_number", snapshot.SerialNumber),
	)

	err := s.archivePool.Submit(func(ctx context.Context) {
		if err := s.archive.Store(ctx, snapshot); err != nil {
			logger.Warn("Failed to archive bill", zap.Error(err))
			return
		}
		logger.Debug("Bill archived")
	})
	if err != nil {
		logger.Warn("Bill archive task rejected", zap.Error(err))
	}
}
