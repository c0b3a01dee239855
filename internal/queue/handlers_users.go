package queue

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// handleMyBalance returns the caller's wallet.
// GET /me/balance
func (s *Server) handleMyBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var balance int
	err := s.db.QueryRow(ctx, `
		SELECT balance_cents FROM users WHERE id = $1
	`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: my balance: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balanceCents":   balance,
		"balanceDisplay": formatCents(balance),
	})
}

// handleUserSummary returns the profile counters.
// GET /users/{id}/summary
func (s *Server) handleUserSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := chi.URLParam(r, "id")

	var displayName string
	err := s.db.QueryRow(ctx, `
		SELECT display_name FROM users WHERE id = $1
	`, targetID).Scan(&displayName)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: user summary fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	var queued, upvotes int
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(vote_count), 0)
		FROM queue_items
		WHERE user_id = $1
	`, targetID).Scan(&queued, &upvotes); err != nil {
		log.Printf("queue-service: user summary counts: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"username":     displayName,
		"queuedCount":  queued,
		"upvotesTotal": upvotes,
	})
}

// handleUserTransactions lists a user's ledger, newest first. Users may
// read their own; admins may read anyone's.
// GET /users/{id}/transactions
func (s *Server) handleUserTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	targetID := chi.URLParam(r, "id")
	if targetID != userID {
		role, err := s.userRole(ctx, userID)
		if err != nil || role != roleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, amount_cents, transaction_type, description,
		       queue_item_id, balance_after_cents, created_at
		FROM balance_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 200
	`, targetID)
	if err != nil {
		log.Printf("queue-service: user transactions: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	entries := []BalanceTransaction{}
	for rows.Next() {
		var bt BalanceTransaction
		if err := rows.Scan(
			&bt.ID,
			&bt.UserID,
			&bt.AmountCents,
			&bt.TransactionType,
			&bt.Description,
			&bt.QueueItemID,
			&bt.BalanceAfterCents,
			&bt.CreatedAt,
		); err != nil {
			log.Printf("queue-service: user transactions scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		entries = append(entries, bt)
	}
	if err := rows.Err(); err != nil {
		log.Printf("queue-service: user transactions rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":       targetID,
		"transactions": entries,
	})
}

// handleAdminCredit tops up a user's wallet (admin only).
// POST /admin/users/{id}/credit
func (s *Server) handleAdminCredit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	role, err := s.userRole(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && role != roleAdmin) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if err != nil {
		log.Printf("queue-service: admin credit role: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	var body struct {
		AmountCents int    `json:"amountCents"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.AmountCents <= 0 {
		writeError(w, http.StatusBadRequest, "amountCents must be positive")
		return
	}
	if body.Description == "" {
		body.Description = "Admin credit"
	}

	targetID := chi.URLParam(r, "id")
	balance, err := s.Credit(ctx, targetID, body.AmountCents, txTypeRefund, body.Description, nil)
	if errors.Is(err, ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: admin credit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balanceCents":   balance,
		"balanceDisplay": formatCents(balance),
	})
}
