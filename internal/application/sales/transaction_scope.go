package sales

import (
	"context"

	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
)

// TransactionScope runs the bookkeeping half of a sale in one database transaction
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to one transaction
type TransactionalRepositories interface {
	// Bills returns the bill repository scoped to the current transaction
	Bills() sales.BillRepository
	// TransactionLog returns the audit log scoped to the current transaction
	TransactionLog() inventory.TransactionLog
}

// NoOpTransactionScope runs fn directly against the given repositories
type NoOpTransactionScope struct {
	bills sales.BillRepository
	log   inventory.TransactionLog
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(bills sales.BillRepository, log inventory.TransactionLog) *NoOpTransactionScope {
	return &NoOpTransactionScope{bills: bills, log: log}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Bills returns the bill repository
func (s *NoOpTransactionScope) Bills() sales.BillRepository {
	return s.bills
}

// TransactionLog returns the transaction log
func (s *NoOpTransactionScope) TransactionLog() inventory.TransactionLog {
	return s.log
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
