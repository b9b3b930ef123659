package persistence

import (
	"context"

	salesapp "github.com/retail/backend/internal/application/sales"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"gorm.io/gorm"
)

// GormSalesTransactionScope runs the bookkeeping half of a sale in one GORM transaction
type GormSalesTransactionScope struct {
	db *gorm.DB
}

// NewGormSalesTransactionScope creates a new GormSalesTransactionScope
func NewGormSalesTransactionScope(db *gorm.DB) *GormSalesTransactionScope {
	return &GormSalesTransactionScope{db: db}
}

// Execute runs fn within a database transaction
func (s *GormSalesTransactionScope) Execute(ctx context.Context, fn func(repos salesapp.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormSalesRepositories{tx: tx})
	})
}

type gormSalesRepositories struct {
	tx *gorm.DB
}

// Bills returns the bill repository scoped to the current transaction
func (r gormSalesRepositories) Bills() sales.BillRepository {
	return NewGormBillRepository(r.tx)
}

// TransactionLog returns the audit log scoped to the current transaction
func (r gormSalesRepositories) TransactionLog() inventory.TransactionLog {
	return NewGormTransactionLog(r.tx)
}

var (
	_ salesapp.TransactionScope          = (*GormSalesTransactionScope)(nil)
	_ salesapp.TransactionalRepositories = gormSalesRepositories{}
)
