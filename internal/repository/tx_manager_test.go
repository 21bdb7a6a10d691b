package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"compugear/internal/database"
	"compugear/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func product(companyID uuid.UUID, sku string) *model.Product {
	return &model.Product{CompanyID: &companyID, SKU: sku, Name: "Item " + sku, Price: decimal.NewFromInt(100)}
}

func skus(t *testing.T, db *gorm.DB) []string {
	t.Helper()
	var out []string
	require.NoError(t, db.Model(&model.Product{}).Order("sku").Pluck("sku", &out).Error)
	return out
}

func TestRunInTxWithRetry(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	deadlock := fmt.Errorf("update stock: %w", &pgconn.PgError{Code: "40P01"})
	permanent := errors.New("constraint check failed")

	tests := []struct {
		name         string
		attempts     int
		failures     []error // error returned by attempt n; attempts past the slice succeed
		cancelOnFail bool
		wantErr      error
		wantCalls    int
		wantSKUs     []string
	}{
		{
			name:      "serialization failure is retried",
			attempts:  3,
			failures:  []error{serialization},
			wantCalls: 2,
			wantSKUs:  []string{"SKU-2"},
		},
		{
			name:      "wrapped deadlock is retried",
			attempts:  3,
			failures:  []error{deadlock, serialization},
			wantCalls: 3,
			wantSKUs:  []string{"SKU-3"},
		},
		{
			name:      "gives up after the last attempt",
			attempts:  2,
			failures:  []error{serialization, serialization, serialization},
			wantErr:   serialization,
			wantCalls: 2,
		},
		{
			name:      "permanent error stops at once",
			attempts:  3,
			failures:  []error{permanent},
			wantErr:   permanent,
			wantCalls: 1,
		},
		{
			name:         "cancelled context stops at once",
			attempts:     3,
			failures:     []error{serialization},
			cancelOnFail: true,
			wantErr:      serialization,
			wantCalls:    1,
		},
		{
			name:      "zero attempts still runs once",
			attempts:  0,
			wantCalls: 1,
			wantSKUs:  []string{"SKU-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			txm := NewTransactionManager(db)
			products := NewProductRepository(db)
			companyID := uuid.New()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			calls := 0
			err := txm.RunInTxWithRetry(ctx, tt.attempts, func(txCtx context.Context) error {
				calls++
				if err := products.Create(txCtx, product(companyID, fmt.Sprintf("SKU-%d", calls))); err != nil {
					return err
				}
				if calls <= len(tt.failures) {
					if tt.cancelOnFail {
						cancel()
					}
					return tt.failures[calls-1]
				}
				return nil
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
			if tt.cancelOnFail {
				return
			}
			if tt.wantSKUs == nil {
				assert.Empty(t, skus(t, db), "every failed attempt rolls back")
			} else {
				assert.Equal(t, tt.wantSKUs, skus(t, db), "only the successful attempt persists")
			}
		})
	}
}

func TestRunInTxNestedUsesSavepoint(t *testing.T) {
	db := newTestDB(t)
	txm := NewTransactionManager(db)
	products := NewProductRepository(db)
	companyID := uuid.New()
	ctx := context.Background()

	innerErr := errors.New("inner failed")
	err := txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := products.Create(txCtx, product(companyID, "OUTER")); err != nil {
			return err
		}
		nested := txm.RunInTx(txCtx, func(innerCtx context.Context) error {
			if err := products.Create(innerCtx, product(companyID, "INNER")); err != nil {
				return err
			}
			return innerErr
		})
		assert.ErrorIs(t, nested, innerErr)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"OUTER"}, skus(t, db))

	err = txm.RunInTx(ctx, func(txCtx context.Context) error {
		if err := products.Create(txCtx, product(companyID, "ROLLED-BACK")); err != nil {
			return err
		}
		return innerErr
	})
	assert.ErrorIs(t, err, innerErr)
	assert.Equal(t, []string{"OUTER"}, skus(t, db))
}

func TestErrorClassifiers(t *testing.T) {
	db := newTestDB(t)
	products := NewProductRepository(db)
	ctx := context.Background()
	companyID := uuid.New()

	require.NoError(t, products.Create(ctx, product(companyID, "DUP")))
	dupErr := products.Create(ctx, product(companyID, "DUP"))
	require.Error(t, dupErr)
	assert.True(t, IsUniqueViolation(dupErr))
	assert.NoError(t, products.Create(ctx, product(uuid.New(), "DUP")), "sku is unique per company")

	_, findErr := products.FindByID(ctx, uuid.New())
	assert.True(t, IsNotFound(findErr))

	tests := []struct {
		err       error
		retryable bool
		unique    bool
	}{
		{&pgconn.PgError{Code: "40001"}, true, false},
		{fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), true, false},
		{&pgconn.PgError{Code: "23505"}, false, true},
		{fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), false, true},
		{errors.New("UNIQUE constraint failed: users.email"), false, true},
		{&pgconn.PgError{Code: "23503"}, false, false},
		{errors.New("connection refused"), false, false},
		{nil, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.retryable, IsRetryable(tt.err), "%v", tt.err)
		assert.Equal(t, tt.unique, IsUniqueViolation(tt.err), "%v", tt.err)
	}
}
