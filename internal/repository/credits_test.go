package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/user/curtas/internal/model"
)

var creditColumns = []string{"id", "owner_kind", "owner_id", "available", "daily_limit", "daily_start", "updated_at"}

func TestCreditsConsumeLocksRowAndDecrements(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCreditsRepository(db)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "credit_accounts" .*ON CONFLICT .*DO NOTHING`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "credit_accounts" WHERE owner_kind = \$1 AND owner_id = \$2 .*FOR UPDATE`).
		WithArgs("device", "device-abc", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(creditColumns).AddRow(1, "device", "device-abc", 4, 4, now.Add(-time.Hour), now.Add(-time.Hour)))
	mock.ExpectExec(`UPDATE "credit_accounts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	acc, ok, err := repo.Consume(context.Background(), model.CreditOwnerDevice, "device-abc", 3, 4, now)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, acc.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreditsConsumeInsufficientWritesNothing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCreditsRepository(db)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "credit_accounts"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "credit_accounts" .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(creditColumns).AddRow(1, "user", "7", 1, 20, now.Add(-time.Hour), now))
	mock.ExpectCommit()

	acc, ok, err := repo.Consume(context.Background(), model.CreditOwnerUser, "7", 3, 20, now)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1, acc.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}
