package queue

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
)

// The balance ledger. Every mutation locks the wallet row, updates the
// cached balance and appends an immutable ledger entry in the same
// transaction, so concurrent debits serialize per user and the sum of
// approved debits can never exceed the balance (no lost-update overdraft).
// Folding a user's entries from the initial credit always reproduces
// users.balance_cents.

// debitBalance decrements the wallet inside the caller's transaction and
// appends a debit entry. Returns the new balance, or
// ErrInsufficientBalance without touching anything.
func debitBalance(ctx context.Context, q querier, userID string, amountCents int, description string, queueItemID *string) (int, error) {
	if amountCents < 0 {
		return 0, fmt.Errorf("debit amount must not be negative: %d", amountCents)
	}

	var balance int
	err := q.QueryRow(ctx, `
		SELECT balance_cents FROM users WHERE id = $1 FOR UPDATE
	`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}

	if amountCents > balance {
		return balance, ErrInsufficientBalance
	}

	newBalance := balance - amountCents
	if _, err := q.Exec(ctx, `
		UPDATE users SET balance_cents = $2 WHERE id = $1
	`, userID, newBalance); err != nil {
		return 0, err
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO balance_transactions (user_id, amount_cents, transaction_type, description, queue_item_id, balance_after_cents)
		VALUES ($1, $2, 'debit', $3, $4, $5)
	`, userID, -amountCents, description, queueItemID, newBalance); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// creditBalance increments the wallet unconditionally and appends an entry
// of the given type ("refund" or "initial").
func creditBalance(ctx context.Context, q querier, userID string, amountCents int, txType, description string, queueItemID *string) (int, error) {
	if amountCents < 0 {
		return 0, fmt.Errorf("credit amount must not be negative: %d", amountCents)
	}
	if txType != txTypeRefund && txType != txTypeInitial {
		return 0, fmt.Errorf("invalid credit transaction type %q", txType)
	}

	var balance int
	err := q.QueryRow(ctx, `
		SELECT balance_cents FROM users WHERE id = $1 FOR UPDATE
	`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}

	newBalance := balance + amountCents
	if _, err := q.Exec(ctx, `
		UPDATE users SET balance_cents = $2 WHERE id = $1
	`, userID, newBalance); err != nil {
		return 0, err
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO balance_transactions (user_id, amount_cents, transaction_type, description, queue_item_id, balance_after_cents)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, userID, amountCents, txType, description, queueItemID, newBalance); err != nil {
		return 0, err
	}

	return newBalance, nil
}

// initializeBalance writes the welcome-bonus entry for a fresh wallet.
// Idempotent: a wallet with any ledger history is left alone.
func initializeBalance(ctx context.Context, q querier, userID string) error {
	var exists bool
	if err := q.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM balance_transactions WHERE user_id = $1)
	`, userID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}

	var balance int
	if err := q.QueryRow(ctx, `
		SELECT balance_cents FROM users WHERE id = $1
	`, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	_, err := q.Exec(ctx, `
		INSERT INTO balance_transactions (user_id, amount_cents, transaction_type, description, balance_after_cents)
		VALUES ($1, $2, 'initial', 'Welcome bonus', $3)
	`, userID, balance, balance)
	return err
}

// InitializeBalance seeds a fresh wallet's ledger. The auth package calls
// it right after inserting a user row.
func InitializeBalance(ctx context.Context, db DB, userID string) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := initializeBalance(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Debit runs debitBalance in its own transaction.
func (s *Server) Debit(ctx context.Context, userID string, amountCents int, description string, queueItemID *string) (int, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	newBalance, err := debitBalance(ctx, tx, userID, amountCents, description, queueItemID)
	if err != nil {
		return newBalance, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("queue-service: debit commit: %v", err)
		return 0, err
	}
	return newBalance, nil
}

// Credit runs creditBalance in its own transaction.
func (s *Server) Credit(ctx context.Context, userID string, amountCents int, txType, description string, queueItemID *string) (int, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	newBalance, err := creditBalance(ctx, tx, userID, amountCents, txType, description, queueItemID)
	if err != nil {
		return newBalance, err
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("queue-service: credit commit: %v", err)
		return 0, err
	}
	return newBalance, nil
}
