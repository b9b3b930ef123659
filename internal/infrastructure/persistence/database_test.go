package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/config"
	"github.com/retail/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newMockDatabase(t *testing.T) (*Database, *testutil.MockDB) {
	mock := testutil.NewMockDB(t)
	return &Database{DB: mock.DB}, mock
}

// TestDatabase_Stats tests the Stats method
func TestDatabase_Stats(t *testing.T) {
	db, mock := newMockDatabase(t)
	defer mock.Close()

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

// TestDatabase_Close tests the Close method
func TestDatabase_Close(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.Mock.ExpectClose()
	assert.NoError(t, db.Close())
	mock.ExpectationsWereMet(t)
}

// TestDatabase_Transaction tests the Transaction method
func TestDatabase_Transaction(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		defer mock.Close()

		mock.Mock.ExpectBegin()
		mock.Mock.ExpectExec(`INSERT INTO "inventory_transactions"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.Mock.ExpectCommit()

		err := db.Transaction(func(tx *gorm.DB) error {
			rec := inventory.NewAdjustmentRecord("TEA", uuid.New(), -1, "damaged")
			return NewGormTransactionLog(tx).Append(context.Background(), rec)
		})
		assert.NoError(t, err)
		mock.ExpectationsWereMet(t)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		defer mock.Close()

		mock.Mock.ExpectBegin()
		mock.Mock.ExpectRollback()

		err := db.Transaction(func(tx *gorm.DB) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		mock.ExpectationsWereMet(t)
	})
}

// The decrement must be a single conditional UPDATE so that two racing
// sellers can never both take the last units.
func TestGormBatchRepository_DecreaseRemainingSQL(t *testing.T) {
	const decrement = `UPDATE "batches" SET "quantity_remaining"=quantity_remaining - \$1,"updated_at"=\$2 ` +
		`WHERE id = \$3 AND quantity_remaining >= \$4`
	id := uuid.New()

	t.Run("row updated", func(t *testing.T) {
		mock := testutil.NewMockDB(t)
		defer mock.Close()

		mock.Mock.ExpectExec(decrement).
			WithArgs(3, sqlmock.AnyArg(), id, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := NewGormBatchRepository(mock.DB).DecreaseRemaining(context.Background(), id, 3)
		require.NoError(t, err)
		assert.True(t, ok)
		mock.ExpectationsWereMet(t)
	})

	t.Run("condition failed on an existing batch", func(t *testing.T) {
		mock := testutil.NewMockDB(t)
		defer mock.Close()

		mock.Mock.ExpectExec(decrement).
			WithArgs(3, sqlmock.AnyArg(), id, 3).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.Mock.ExpectQuery(`SELECT count\(\*\) FROM "batches" WHERE id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		ok, err := NewGormBatchRepository(mock.DB).DecreaseRemaining(context.Background(), id, 3)
		require.NoError(t, err)
		assert.False(t, ok)
		mock.ExpectationsWereMet(t)
	})

	t.Run("missing batch", func(t *testing.T) {
		mock := testutil.NewMockDB(t)
		defer mock.Close()

		mock.Mock.ExpectExec(decrement).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.Mock.ExpectQuery(`SELECT count\(\*\) FROM "batches"`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		_, err := NewGormBatchRepository(mock.DB).DecreaseRemaining(context.Background(), id, 3)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		mock.ExpectationsWereMet(t)
	})
}

func TestGormStoreStockRepository_DecreaseQuantitySQL(t *testing.T) {
	mock := testutil.NewMockDB(t)
	defer mock.Close()
	batchID := uuid.New()

	mock.Mock.ExpectExec(`UPDATE "store_stock" SET "quantity"=quantity - \$1,"updated_at"=\$2 ` +
		`WHERE channel = \$3 AND \(?product_code = \$4 AND batch_id = \$5 AND quantity >= \$6\)?`).
		WithArgs(2, sqlmock.AnyArg(), "ONLINE", "TEA", batchID, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewGormStoreStockRepository(mock.DB, inventory.ChannelOnline)
	ok, err := repo.DecreaseQuantity(context.Background(), "TEA", batchID, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	mock.ExpectationsWereMet(t)
}

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "retail.db"),
	}
	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping())
	exists, err := NewGormBatchRepository(db.DB).Exists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, exists, "schema is migrated on open")
}
