package queue

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

// Session lifecycle: active -> paused <-> active -> ended. Ended is
// absorbing; no transition leaves it.
func canTransition(from, to string) bool {
	switch from {
	case sessionActive:
		return to == sessionPaused || to == sessionEnded
	case sessionPaused:
		return to == sessionActive || to == sessionEnded
	default:
		return false
	}
}

// handleJoinByCode resolves a 6-digit join code to an active session.
// POST /join
func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Code = strings.TrimSpace(body.Code)
	if !validJoinCode(body.Code) {
		writeError(w, http.StatusBadRequest, "code must be 6 digits")
		return
	}

	sess, err := findActiveSessionByCode(ctx, s.db, body.Code)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "no active session for that code")
		return
	}
	if err != nil {
		log.Printf("queue-service: join by code: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleGetSession returns the session row.
// GET /sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := chi.URLParam(r, "id")

	sess, err := s.loadSession(ctx, sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: get session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// handleCreateVenue creates a venue owned by the caller.
// POST /host/venues
func (s *Server) handleCreateVenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var body struct {
		Name                string   `json:"name"`
		Location            string   `json:"location"`
		Capacity            int      `json:"capacity"`
		PricingEnabled      *bool    `json:"pricingEnabled"`
		BasePriceCents      *int     `json:"basePriceCents"`
		MinPriceCents       *int     `json:"minPriceCents"`
		MaxPriceCents       *int     `json:"maxPriceCents"`
		PriceMultiplier     *float64 `json:"priceMultiplier"`
		PeakHoursStart      *int     `json:"peakHoursStart"`
		PeakHoursEnd        *int     `json:"peakHoursEnd"`
		PeakHoursMultiplier *float64 `json:"peakHoursMultiplier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	v := Venue{
		HostUserID:          userID,
		Name:                body.Name,
		Location:            strings.TrimSpace(body.Location),
		Capacity:            body.Capacity,
		PricingEnabled:      true,
		BasePriceCents:      100,
		MinPriceCents:       1,
		MaxPriceCents:       50000,
		PriceMultiplier:     1.0,
		PeakHoursStart:      19,
		PeakHoursEnd:        23,
		PeakHoursMultiplier: 1.5,
	}
	if body.PricingEnabled != nil {
		v.PricingEnabled = *body.PricingEnabled
	}
	if body.BasePriceCents != nil {
		v.BasePriceCents = *body.BasePriceCents
	}
	if body.MinPriceCents != nil {
		v.MinPriceCents = *body.MinPriceCents
	}
	if body.MaxPriceCents != nil {
		v.MaxPriceCents = *body.MaxPriceCents
	}
	if body.PriceMultiplier != nil {
		v.PriceMultiplier = *body.PriceMultiplier
	}
	if body.PeakHoursStart != nil {
		v.PeakHoursStart = *body.PeakHoursStart
	}
	if body.PeakHoursEnd != nil {
		v.PeakHoursEnd = *body.PeakHoursEnd
	}
	if body.PeakHoursMultiplier != nil {
		v.PeakHoursMultiplier = *body.PeakHoursMultiplier
	}

	if msg := validatePricingConfig(&v); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO venues (host_user_id, name, location, capacity,
		                    pricing_enabled, base_price_cents, min_price_cents,
		                    max_price_cents, price_multiplier, peak_hours_start,
		                    peak_hours_end, peak_hours_multiplier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`, v.HostUserID, v.Name, v.Location, v.Capacity, v.PricingEnabled,
		v.BasePriceCents, v.MinPriceCents, v.MaxPriceCents, v.PriceMultiplier,
		v.PeakHoursStart, v.PeakHoursEnd, v.PeakHoursMultiplier,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		log.Printf("queue-service: create venue: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusCreated, v)
}

// handleUpdateVenuePricing updates a venue's pricing configuration.
// PATCH /host/venues/{id}/pricing
func (s *Server) handleUpdateVenuePricing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	venueID := chi.URLParam(r, "id")
	venue, err := s.loadVenue(ctx, venueID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "venue not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: update pricing fetch venue: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if venue.HostUserID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var body struct {
		PricingEnabled      *bool    `json:"pricingEnabled"`
		BasePriceCents      *int     `json:"basePriceCents"`
		MinPriceCents       *int     `json:"minPriceCents"`
		MaxPriceCents       *int     `json:"maxPriceCents"`
		PriceMultiplier     *float64 `json:"priceMultiplier"`
		PeakHoursStart      *int     `json:"peakHoursStart"`
		PeakHoursEnd        *int     `json:"peakHoursEnd"`
		PeakHoursMultiplier *float64 `json:"peakHoursMultiplier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if body.PricingEnabled != nil {
		venue.PricingEnabled = *body.PricingEnabled
	}
	if body.BasePriceCents != nil {
		venue.BasePriceCents = *body.BasePriceCents
	}
	if body.MinPriceCents != nil {
		venue.MinPriceCents = *body.MinPriceCents
	}
	if body.MaxPriceCents != nil {
		venue.MaxPriceCents = *body.MaxPriceCents
	}
	if body.PriceMultiplier != nil {
		venue.PriceMultiplier = *body.PriceMultiplier
	}
	if body.PeakHoursStart != nil {
		venue.PeakHoursStart = *body.PeakHoursStart
	}
	if body.PeakHoursEnd != nil {
		venue.PeakHoursEnd = *body.PeakHoursEnd
	}
	if body.PeakHoursMultiplier != nil {
		venue.PeakHoursMultiplier = *body.PeakHoursMultiplier
	}

	if msg := validatePricingConfig(venue); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	_, err = s.db.Exec(ctx, `
		UPDATE venues
		SET pricing_enabled = $2, base_price_cents = $3, min_price_cents = $4,
		    max_price_cents = $5, price_multiplier = $6, peak_hours_start = $7,
		    peak_hours_end = $8, peak_hours_multiplier = $9
		WHERE id = $1
	`, venue.ID, venue.PricingEnabled, venue.BasePriceCents, venue.MinPriceCents,
		venue.MaxPriceCents, venue.PriceMultiplier, venue.PeakHoursStart,
		venue.PeakHoursEnd, venue.PeakHoursMultiplier)
	if err != nil {
		log.Printf("queue-service: update venue pricing: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, venue)
}

func validatePricingConfig(v *Venue) string {
	if v.MinPriceCents > v.MaxPriceCents {
		return "minPriceCents must not exceed maxPriceCents"
	}
	if v.BasePriceCents < 0 || v.MinPriceCents < 0 {
		return "prices must not be negative"
	}
	if v.PeakHoursStart < 0 || v.PeakHoursStart > 23 || v.PeakHoursEnd < 0 || v.PeakHoursEnd > 23 {
		return "peak hours must be within 0-23"
	}
	if v.PriceMultiplier < 0 || v.PeakHoursMultiplier < 0 {
		return "multipliers must not be negative"
	}
	return ""
}

// handleCreateSession starts a venue's live queue. One active session per
// venue; the join code is generated before the insert.
// POST /host/venues/{id}/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	venueID := chi.URLParam(r, "id")
	venue, err := s.loadVenue(ctx, venueID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "venue not found")
		return
	}
	if err != nil {
		log.Printf("queue-service: create session fetch venue: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if venue.HostUserID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var activeExists bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM sessions WHERE venue_id = $1 AND status <> 'ended')
	`, venueID).Scan(&activeExists); err != nil {
		log.Printf("queue-service: create session active check: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if activeExists {
		writeError(w, http.StatusConflict, "session already active")
		return
	}

	code, err := generateJoinCode(ctx, s.db)
	if err != nil {
		log.Printf("queue-service: create session join code: %v", err)
		writeError(w, http.StatusInternalServerError, "could not generate join code")
		return
	}

	sess := Session{
		VenueID:  venueID,
		Status:   sessionActive,
		JoinCode: code,
	}
	err = s.db.QueryRow(ctx, `
		INSERT INTO sessions (venue_id, status, join_code, started_at)
		VALUES ($1, 'active', $2, $3)
		RETURNING id, started_at, created_at
	`, venueID, code, time.Now()).Scan(&sess.ID, &sess.StartedAt, &sess.CreatedAt)
	if err != nil {
		log.Printf("queue-service: create session insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "session.created", sess)

	writeJSON(w, http.StatusCreated, map[string]any{
		"sessionId": sess.ID,
		"joinCode":  sess.JoinCode,
		"status":    sess.Status,
	})
}

// PATCH /host/sessions/{id}/pause
func (s *Server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	s.transitionSession(w, r, sessionPaused)
}

// PATCH /host/sessions/{id}/resume
func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	s.transitionSession(w, r, sessionActive)
}

// PATCH /host/sessions/{id}/end
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	s.transitionSession(w, r, sessionEnded)
}

func (s *Server) transitionSession(w http.ResponseWriter, r *http.Request, target string) {
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
		log.Printf("queue-service: session transition fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if venue.HostUserID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	// Resuming a paused session is "paused -> active"; pausing twice or
	// touching an ended session is a conflict.
	if sess.Status == target {
		writeError(w, http.StatusConflict, "session already "+target)
		return
	}
	if !canTransition(sess.Status, target) {
		writeError(w, http.StatusConflict, "cannot "+verbFor(target)+" a session that is "+sess.Status)
		return
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		log.Printf("queue-service: session transition begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(ctx)

	if target == sessionEnded {
		// Ending a session also stops playback.
		if _, err := tx.Exec(ctx, `
			UPDATE queue_items SET is_currently_playing = FALSE WHERE session_id = $1
		`, sessionID); err != nil {
			log.Printf("queue-service: end session clear items: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if _, err := tx.Exec(ctx, `
			UPDATE sessions
			SET status = 'ended', ended_at = $2,
			    currently_playing_id = NULL, playback_started_at = NULL
			WHERE id = $1
		`, sessionID, time.Now()); err != nil {
			log.Printf("queue-service: end session update: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE sessions SET status = $2 WHERE id = $1
		`, sessionID, target); err != nil {
			log.Printf("queue-service: session transition update: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("queue-service: session transition commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(ctx, "session.status_changed", map[string]any{
		"sessionId": sessionID,
		"status":    target,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": target})
}

func verbFor(target string) string {
	switch target {
	case sessionPaused:
		return "pause"
	case sessionActive:
		return "resume"
	default:
		return "end"
	}
}

// handleRegenerateCode replaces a session's join code.
// PATCH /host/sessions/{id}/regenerate_code
func (s *Server) handleRegenerateCode(w http.ResponseWriter, r *http.Request) {
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
		log.Printf("queue-service: regenerate code fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if venue.HostUserID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	if sess.Status == sessionEnded {
		writeError(w, http.StatusConflict, "session has ended")
		return
	}

	code, err := generateJoinCode(ctx, s.db)
	if err != nil {
		log.Printf("queue-service: regenerate code: %v", err)
		writeError(w, http.StatusInternalServerError, "could not generate join code")
		return
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE sessions SET join_code = $2 WHERE id = $1
	`, sessionID, code); err != nil {
		log.Printf("queue-service: regenerate code update: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"joinCode": code})
}
