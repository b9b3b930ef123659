package inventory

import (
	"context"

	"github.com/retail/backend/internal/domain/inventory"
)

// TransactionScope provides transactional access to the inventory repositories.
// All repository operations inside fn are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to one transaction.
//
// Channel quantities change through conditional updates outside any transaction;
// the scope is used to pair a channel row change with its audit record.
type TransactionalRepositories interface {
	// Batches returns the batch ledger repository scoped to the current transaction
	Batches() inventory.BatchRepository
	// StoreStock returns the store stock repository of a channel scoped to the current transaction
	StoreStock(channel inventory.Channel) inventory.StoreStockRepository
	// TransactionLog returns the audit log scoped to the current transaction
	TransactionLog() inventory.TransactionLog
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing or when transaction support is not required.
type NoOpTransactionScope struct {
	batches inventory.BatchRepository
	stores  map[inventory.Channel]inventory.StoreStockRepository
	log     inventory.TransactionLog
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
// Each store repository is registered under its own channel.
func NewNoOpTransactionScope(
	batches inventory.BatchRepository,
	log inventory.TransactionLog,
	stores ...inventory.StoreStockRepository,
) *NoOpTransactionScope {
	s := &NoOpTransactionScope{
		batches: batches,
		stores:  make(map[inventory.Channel]inventory.StoreStockRepository, len(stores)),
		log:     log,
	}
	for _, st := range stores {
		s.stores[st.Channel()] = st
	}
	return s
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// Batches returns the batch repository.
func (s *NoOpTransactionScope) Batches() inventory.BatchRepository {
	return s.batches
}

// StoreStock returns the store repository registered for channel.
func (s *NoOpTransactionScope) StoreStock(channel inventory.Channel) inventory.StoreStockRepository {
	return s.stores[channel]
}

// TransactionLog returns the transaction log.
func (s *NoOpTransactionScope) TransactionLog() inventory.TransactionLog {
	return s.log
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
