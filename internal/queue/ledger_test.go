package queue

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "11111111-1111-1111-1111-111111111111"

func newLedgerMock(t *testing.T) pgxmock.PgxPoolIface {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestDebitBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock := newLedgerMock(t)

		mock.ExpectQuery("SELECT balance_cents FROM users WHERE id = .* FOR UPDATE").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"balance_cents"}).AddRow(10000))
		mock.ExpectExec("UPDATE users SET balance_cents").
			WithArgs(testUser, 9700).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO balance_transactions").
			WithArgs(testUser, -300, "Paid queue placement", (*string)(nil), 9700).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		newBalance, err := debitBalance(ctx, mock, testUser, 300, "Paid queue placement", nil)
		assert.NoError(t, err)
		assert.Equal(t, 9700, newBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance leaves wallet untouched", func(t *testing.T) {
		mock := newLedgerMock(t)

		mock.ExpectQuery("SELECT balance_cents FROM users WHERE id = .* FOR UPDATE").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"balance_cents"}).AddRow(200))

		balance, err := debitBalance(ctx, mock, testUser, 300, "Paid queue placement", nil)
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, 200, balance)
		assert.NoError(t, mock.ExpectationsWereMet(), "no update or insert may run")
	})

	t.Run("exact balance drains to zero", func(t *testing.T) {
		mock := newLedgerMock(t)

		mock.ExpectQuery("SELECT balance_cents FROM users WHERE id = .* FOR UPDATE").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"balance_cents"}).AddRow(300))
		mock.ExpectExec("UPDATE users SET balance_cents").
			WithArgs(testUser, 0).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO balance_transactions").
			WithArgs(testUser, -300, "Paid queue placement", (*string)(nil), 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		newBalance, err := debitBalance(ctx, mock, testUser, 300, "Paid queue placement", nil)
		assert.NoError(t, err)
		assert.Equal(t, 0, newBalance)
	})

	t.Run("zero amount still writes an entry", func(t *testing.T) {
		mock := newLedgerMock(t)

		mock.ExpectQuery("SELECT balance_cents FROM users WHERE id = .* FOR UPDATE").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"balance_cents"}).AddRow(500))
		mock.ExpectExec("UPDATE users SET balance_cents").
			WithArgs(testUser, 500).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO balance_transactions").
			WithArgs(testUser, 0, "Free placement", (*string)(nil), 500).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		newBalance, err := debitBalance(ctx, mock, testUser, 0, "Free placement", nil)
		assert.NoError(t, err)
		assert.Equal(t, 500, newBalance)
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		mock := newLedgerMock(t)

		_, err := debitBalance(ctx, mock, testUser, -50, "nope", nil)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user", func(t *testing.T) {
		mock := newLedgerMock(t)

		mock.ExpectQuery("SELECT balance_cents FROM users WHERE id = .* FOR UPDATE").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"balance_cents"}))

		_, err := debitBalance(ctx, mock, testUser, 300, "Paid queue placement", nil)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestCreditBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("refund", func(t *testing.T) {
		mock := newLedgerMock(t)
		itemID := "item1"

		mock.ExpectQuery("SELECT balance_cents FROM users WHERE id = .* FOR UPDATE").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"balance_cents"}).AddRow(9700))
		mock.ExpectExec("UPDATE users SET balance_cents").
			WithArgs(testUser, 10000).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO balance_transactions").
			WithArgs(testUser, 300, txTypeRefund, "Refund for removed request", &itemID, 10000).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		newBalance, err := creditBalance(ctx, mock, testUser, 300, txTypeRefund, "Refund for removed request", &itemID)
		assert.NoError(t, err)
		assert.Equal(t, 10000, newBalance)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects debit type", func(t *testing.T) {
		mock := newLedgerMock(t)

		_, err := creditBalance(ctx, mock, testUser, 300, "debit", "wrong", nil)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("negative amount rejected", func(t *testing.T) {
		mock := newLedgerMock(t)

		_, err := creditBalance(ctx, mock, testUser, -1, txTypeRefund, "nope", nil)
		assert.Error(t, err)
	})
}

func TestInitializeBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh wallet gets welcome entry", func(t *testing.T) {
		mock := newLedgerMock(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("SELECT balance_cents FROM users WHERE id").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"balance_cents"}).AddRow(10000))
		mock.ExpectExec("INSERT INTO balance_transactions").
			WithArgs(testUser, 10000, 10000).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, initializeBalance(ctx, mock, testUser))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("idempotent on repeated calls", func(t *testing.T) {
		mock := newLedgerMock(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		assert.NoError(t, initializeBalance(ctx, mock, testUser))
		assert.NoError(t, mock.ExpectationsWereMet(), "no insert on second call")
	})

	t.Run("unknown user", func(t *testing.T) {
		mock := newLedgerMock(t)

		mock.ExpectQuery("SELECT EXISTS").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("SELECT balance_cents FROM users WHERE id").
			WithArgs(testUser).
			WillReturnRows(pgxmock.NewRows([]string{"balance_cents"}))

		assert.ErrorIs(t, initializeBalance(ctx, mock, testUser), ErrUserNotFound)
	})
}
