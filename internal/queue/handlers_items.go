package queue

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// itemView decorates a queue item with the display fields clients render.
type itemView struct {
	QueueItem
	PriceDisplay       string `json:"priceDisplay"`
	EffectiveCostCents int    `json:"effectiveCostCents"`
}

func viewOf(qi QueueItem) itemView {
	return itemView{
		QueueItem:          qi,
		PriceDisplay:       formatCents(qi.PositionPaidCents),
		EffectiveCostCents: qi.EffectiveCost(),
	}
}

// handleGetQueue returns the pending queue in display order plus the
// currently playing item.
// GET /sessions/{id}/queue
func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	sess, err := s.loadSession(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: get queue fetch session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	pending, err := s.pendingItems(ctx, sessionID)
	if err != nil {
		log.Printf("queue-service: get queue load items: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	ordered := byPosition(pending)
	views := make([]itemView, 0, len(ordered))
	for _, qi := range ordered {
		views = append(views, viewOf(qi))
	}

	resp := map[string]any{
		"sessionId":  sess.ID,
		"status":     sess.Status,
		"songsCount": len(pending),
		"items":      views,
	}

	if sess.CurrentlyPlayingID != nil {
		var qi QueueItem
		err := scanItem(s.db.QueryRow(ctx, `
			SELECT `+itemColumns+`
			FROM queue_items
			WHERE id = $1
		`, *sess.CurrentlyPlayingID), &qi)
		if err == nil {
			resp["nowPlaying"] = viewOf(qi)
		} else if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("queue-service: get queue fetch playing: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// resolvePosition turns a desired-position parameter into a concrete
// 1-indexed position. The shorthands resolve against the current unplayed
// count: "next" is the end of the queue, "next_plus_1"/"next_plus_2" leave
// room behind it.
func resolvePosition(raw any, unplayedCount int) (int, bool) {
	switch v := raw.(type) {
	case nil:
		return unplayedCount + 1, true
	case float64:
		return int(v), true
	case string:
		switch strings.TrimSpace(v) {
		case "", "next":
			return unplayedCount + 1, true
		case "next_plus_1":
			return unplayedCount + 2, true
		case "next_plus_2":
			return unplayedCount + 3, true
		default:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return 0, false
			}
			return n, true
		}
	default:
		return 0, false
	}
}

// priorityForJump picks the purchased base-priority tier. Organic items sit
// at 0; a purchase that jumps ahead of k items lands k tiers below zero, so
// paid placements always outrank organic ones and deeper jumps outrank
// shallower ones.
func priorityForJump(desiredPosition, unplayedCount int) int {
	p := desiredPosition - (unplayedCount + 1)
	if p > 0 {
		return 0
	}
	return p
}

// handleCreateItem submits a song request, optionally buying a queue
// position. Quote, debit and insert run in one transaction: a failed debit
// leaves no item behind.
// POST /sessions/{id}/items
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	sessionID := chi.URLParam(r, "id")
	sess, venue, err := s.loadSessionVenue(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: create item fetch session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if sess.Status != sessionActive {
		writeError(w, http.StatusConflict, "session is "+sess.Status)
		return
	}

	var body struct {
		Title           string `json:"title"`
		Artist          string `json:"artist"`
		ExternalID      string `json:"externalId"`
		CoverURL        string `json:"coverUrl"`
		PreviewURL      string `json:"previewUrl"`
		DurationMs      int    `json:"durationMs"`
		DesiredPosition any    `json:"desiredPosition"`
		PaidAmountCents int    `json:"paidAmountCents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Title = strings.TrimSpace(body.Title)
	body.Artist = strings.TrimSpace(body.Artist)
	if body.Title == "" || body.Artist == "" {
		writeError(w, http.StatusBadRequest, "title and artist are required")
		return
	}

	count, err := s.songsCount(ctx, sessionID)
	if err != nil {
		log.Printf("queue-service: create item count: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	paidPlacement := body.DesiredPosition != nil
	desired, ok := resolvePosition(body.DesiredPosition, count)
	if !ok || desired <= 0 {
		writeError(w, http.StatusBadRequest, "invalid desired position")
		return
	}

	var (
		quote        int
		paid         int
		basePriority int
		insertedAt   *int
	)
	if paidPlacement {
		quote = PositionPrice(venue, time.Now(), desired)
		paid = body.PaidAmountCents
		// Declared payment must meet or exceed the quote; the declared
		// amount is what gets debited.
		if paid < quote {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":    "payment below quoted price",
				"required": quote,
				"offered":  paid,
			})
			return
		}
		basePriority = priorityForJump(desired, count)
		insertedAt = &desired
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("queue-service: create item begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	var qi QueueItem
	err = scanItem(tx.QueryRow(ctx, `
		INSERT INTO queue_items (session_id, user_id, title, artist, external_id,
		                         cover_url, preview_url, duration_ms, base_priority,
		                         position_paid_cents, inserted_at_position)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+itemColumns+`
	`, sessionID, userID, body.Title, body.Artist, body.ExternalID,
		body.CoverURL, body.PreviewURL, body.DurationMs, basePriority,
		paid, insertedAt), &qi)
	if err != nil {
		log.Printf("queue-service: create item insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if paid > 0 {
		balance, err := debitBalance(ctx, tx, userID, paid, "Queue position "+strconv.Itoa(desired), &qi.ID)
		if errors.Is(err, ErrInsufficientBalance) {
			writeJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":    "insufficient balance",
				"balance":  balance,
				"required": paid,
			})
			return
		}
		if errors.Is(err, ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		if err != nil {
			log.Printf("queue-service: create item debit: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("queue-service: create item commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "track.added", map[string]any{
		"sessionId": sessionID,
		"item":      viewOf(qi),
	})

	writeJSON(w, http.StatusCreated, viewOf(qi))
}

// handleDeleteItem removes a pending request. Paid placements are
// refunded their effective cost in the same transaction.
// DELETE /items/{id}
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	itemID := chi.URLParam(r, "id")

	var qi QueueItem
	err := scanItem(s.db.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM queue_items
		WHERE id = $1
	`, itemID), &qi)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: delete item fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if qi.UserID == nil || *qi.UserID != userID {
		// The session host may also prune the queue.
		_, venue, verr := s.loadSessionVenue(ctx, qi.SessionID)
		if verr != nil || venue.HostUserID != userID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
	}
	if qi.Status != itemPending {
		writeError(w, http.StatusConflict, "only pending items can be removed")
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("queue-service: delete item begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	// The conditional delete is the refund gate: a concurrent removal or a
	// playback transition leaves no row to return, and then nothing is
	// credited. The refund cannot be issued twice for one item.
	var (
		payerID  *string
		paid     int
		refunded int
	)
	err = tx.QueryRow(ctx, `
		DELETE FROM queue_items
		WHERE id = $1 AND status = 'pending'
		RETURNING user_id, position_paid_cents, refund_amount_cents
	`, itemID).Scan(&payerID, &paid, &refunded)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusConflict, "only pending items can be removed")
		return
	}
	if err != nil {
		log.Printf("queue-service: delete item: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	// The row is gone within this transaction, so the ledger entry carries
	// the item only in its description.
	refund := paid - refunded
	if refund > 0 && payerID != nil {
		if _, err := creditBalance(ctx, tx, *payerID, refund, txTypeRefund, "Removed queue item "+itemID, nil); err != nil {
			log.Printf("queue-service: delete item refund: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("queue-service: delete item commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "track.removed", map[string]any{
		"sessionId":    qi.SessionID,
		"itemId":       qi.ID,
		"refundedCents": refund,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":       true,
		"refundedCents": refund,
	})
}

// handleVoteItem applies a signed vote delta with a single atomic SQL
// increment; concurrent votes never lose updates.
// PATCH /items/{id}/vote
func (s *Server) handleVoteItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delta int `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.applyVote(w, r, body.Delta)
}

// POST /items/{id}/upvote
func (s *Server) handleUpvoteItem(w http.ResponseWriter, r *http.Request) {
	s.applyVote(w, r, 1)
}

// POST /items/{id}/downvote
func (s *Server) handleDownvoteItem(w http.ResponseWriter, r *http.Request) {
	s.applyVote(w, r, -1)
}

func (s *Server) applyVote(w http.ResponseWriter, r *http.Request, delta int) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}
	if delta == 0 {
		writeError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}

	itemID := chi.URLParam(r, "id")

	upvotes := 0
	if delta > 0 {
		upvotes = 1
	}

	var score int
	err := s.db.QueryRow(ctx, `
		UPDATE queue_items
		SET vote_score = vote_score + $2, vote_count = vote_count + $3
		WHERE id = $1 AND status = 'pending'
		RETURNING vote_score
	`, itemID, delta, upvotes).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: vote item: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "vote.cast", map[string]any{
		"itemId":    itemID,
		"voteScore": score,
	})

	writeJSON(w, http.StatusOK, map[string]int{"votes": score})
}
