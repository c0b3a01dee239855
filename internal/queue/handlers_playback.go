package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// PlayNext advances playback: it picks the playback-order head among
// unplayed pending items and makes it the single currently-playing item.
// When the queue is empty it stops playback instead and returns
// ErrQueueEmpty. The whole transition is one transaction; partial state is
// never observable.
func (s *Server) PlayNext(ctx context.Context, sessionID string) (*QueueItem, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("play next begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT `+itemColumns+`
		FROM queue_items
		WHERE session_id = $1 AND status = 'pending' AND played_at IS NULL
		FOR UPDATE
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("play next load pending: %w", err)
	}

	pending := []QueueItem{}
	for rows.Next() {
		var qi QueueItem
		if err := scanItem(rows, &qi); err != nil {
			rows.Close()
			return nil, fmt.Errorf("play next scan: %w", err)
		}
		pending = append(pending, qi)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("play next rows: %w", err)
	}

	if len(pending) == 0 {
		if err := stopPlaybackTx(ctx, tx, sessionID); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("play next commit: %w", err)
		}
		return nil, ErrQueueEmpty
	}

	next := byVotes(pending)[0]
	now := time.Now()

	// Clear-all-then-set-one keeps the "exactly one currently playing"
	// invariant under concurrent transitions. The outgoing item retires
	// from "playing" to "played" in the same statement.
	if _, err := tx.Exec(ctx, `
		UPDATE queue_items
		SET is_currently_playing = FALSE,
		    status = CASE WHEN status = 'playing' THEN 'played' ELSE status END
		WHERE session_id = $1
	`, sessionID); err != nil {
		return nil, fmt.Errorf("play next clear flags: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE queue_items
		SET status = 'playing', played_at = $2, is_currently_playing = TRUE
		WHERE id = $1
	`, next.ID, now); err != nil {
		return nil, fmt.Errorf("play next mark playing: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE sessions
		SET currently_playing_id = $2, playback_started_at = $3
		WHERE id = $1
	`, sessionID, next.ID, now); err != nil {
		return nil, fmt.Errorf("play next update session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("play next commit: %w", err)
	}

	next.Status = itemPlaying
	next.PlayedAt = &now
	next.IsCurrentlyPlaying = true
	return &next, nil
}

// StopPlayback clears every currently-playing flag and the session's
// pointer fields. Idempotent.
func (s *Server) StopPlayback(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("stop playback begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := stopPlaybackTx(ctx, tx, sessionID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("stop playback commit: %w", err)
	}
	return nil
}

func stopPlaybackTx(ctx context.Context, tx pgx.Tx, sessionID string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE queue_items
		SET is_currently_playing = FALSE,
		    status = CASE WHEN status = 'playing' THEN 'played' ELSE status END
		WHERE session_id = $1
	`, sessionID); err != nil {
		return fmt.Errorf("stop playback clear items: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE sessions
		SET currently_playing_id = NULL, playback_started_at = NULL
		WHERE id = $1
	`, sessionID); err != nil {
		return fmt.Errorf("stop playback clear session: %w", err)
	}
	return nil
}

// handlePlayNext advances the session's playback (host only).
// POST /host/sessions/{id}/playback/next
func (s *Server) handlePlayNext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	sess, ok := s.authorizeHost(w, r, sessionID)
	if !ok {
		return
	}
	if sess.Status == sessionEnded {
		writeError(w, http.StatusConflict, "session has ended")
		return
	}

	item, err := s.PlayNext(ctx, sessionID)
	if errors.Is(err, ErrQueueEmpty) {
		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId": sessionID,
			"status":    "stopped",
			"message":   "queue empty",
		})
		return
	}
	if err != nil {
		// A failed transition means a storage or invariant problem;
		// propagate, never retry.
		log.Printf("queue-service: play next: %v", err)
		writeError(w, http.StatusInternalServerError, "playback transition failed")
		return
	}

	state := map[string]any{
		"sessionId":         sessionID,
		"status":            "playing",
		"currentItemId":     item.ID,
		"title":             item.Title,
		"artist":            item.Artist,
		"playbackStartedAt": item.PlayedAt,
	}
	s.publishEvent(ctx, "player.state_changed", state)
	writeJSON(w, http.StatusOK, state)
}

// handleStopPlayback stops the session's playback (host only).
// POST /host/sessions/{id}/playback/stop
func (s *Server) handleStopPlayback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	if _, ok := s.authorizeHost(w, r, sessionID); !ok {
		return
	}

	if err := s.StopPlayback(ctx, sessionID); err != nil {
		log.Printf("queue-service: stop playback: %v", err)
		writeError(w, http.StatusInternalServerError, "playback transition failed")
		return
	}

	state := map[string]any{
		"sessionId": sessionID,
		"status":    "stopped",
	}
	s.publishEvent(ctx, "player.state_changed", state)
	writeJSON(w, http.StatusOK, state)
}

// handlePlaybackState is the cheap poll target for clients.
// GET /sessions/{id}/state
func (s *Server) handlePlaybackState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	sess, err := s.loadSession(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: playback state fetch session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	count, err := s.songsCount(ctx, sessionID)
	if err != nil {
		log.Printf("queue-service: playback state count: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	state := map[string]any{
		"sessionId":         sess.ID,
		"status":            sess.Status,
		"songsCount":        count,
		"playbackStartedAt": sess.PlaybackStartedAt,
	}

	if sess.CurrentlyPlayingID != nil {
		var qi QueueItem
		err := scanItem(s.db.QueryRow(ctx, `
			SELECT `+itemColumns+`
			FROM queue_items
			WHERE id = $1
		`, *sess.CurrentlyPlayingID), &qi)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("queue-service: playback state fetch item: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if err == nil {
			state["nowPlaying"] = map[string]any{
				"itemId": qi.ID,
				"title":  qi.Title,
				"artist": qi.Artist,
			}
		}
	}

	writeJSON(w, http.StatusOK, state)
}

// authorizeHost loads the session and checks the caller hosts its venue.
// Writes the error response itself when authorization fails.
func (s *Server) authorizeHost(w http.ResponseWriter, r *http.Request, sessionID string) (*Session, bool) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return nil, false
	}

	sess, venue, err := s.loadSessionVenue(r.Context(), sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		log.Printf("queue-service: host authorize: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return nil, false
	}
	if venue.HostUserID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return sess, true
}
