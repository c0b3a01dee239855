package queue

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
)

type positionQuote struct {
	Position     int    `json:"position"`
	PriceCents   int    `json:"priceCents"`
	PriceDisplay string `json:"priceDisplay"`
}

// sessionForPricing resolves the sessionId query parameter. There is no
// default-session fallback: callers always say which session they mean.
func (s *Server) sessionForPricing(w http.ResponseWriter, r *http.Request) (*Session, *Venue, bool) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return nil, nil, false
	}

	sess, venue, err := s.loadSessionVenue(r.Context(), sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "session not found")
		return nil, nil, false
	}
	if err != nil {
		log.Printf("queue-service: pricing fetch session: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return nil, nil, false
	}
	return sess, venue, true
}

// handleCurrentPrices quotes positions 1..10 at the current moment.
// GET /api/pricing/current_prices?sessionId=
func (s *Server) handleCurrentPrices(w http.ResponseWriter, r *http.Request) {
	sess, venue, ok := s.sessionForPricing(w, r)
	if !ok {
		return
	}

	now := time.Now()
	positions := make([]positionQuote, 0, 10)
	for pos := 1; pos <= 10; pos++ {
		cents := PositionPrice(venue, now, pos)
		positions = append(positions, positionQuote{
			Position:     pos,
			PriceCents:   cents,
			PriceDisplay: formatCents(cents),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.ID,
		"positions": positions,
		"factors":   PositionFactors(venue, now, 1),
	})
}

// handlePositionPrice quotes one position.
// GET /api/pricing/position_price?sessionId=&position=
func (s *Server) handlePositionPrice(w http.ResponseWriter, r *http.Request) {
	_, venue, ok := s.sessionForPricing(w, r)
	if !ok {
		return
	}

	position, err := strconv.Atoi(r.URL.Query().Get("position"))
	if err != nil || position <= 0 {
		writeError(w, http.StatusBadRequest, "invalid position")
		return
	}

	now := time.Now()
	factors := PositionFactors(venue, now, position)
	writeJSON(w, http.StatusOK, map[string]any{
		"position":     position,
		"priceCents":   factors.FinalPriceCents,
		"priceDisplay": formatCents(factors.FinalPriceCents),
		"factors":      factors,
	})
}

// handlePricingFactors returns the breakdown alone.
// GET /api/pricing/factors?sessionId=&position=
func (s *Server) handlePricingFactors(w http.ResponseWriter, r *http.Request) {
	_, venue, ok := s.sessionForPricing(w, r)
	if !ok {
		return
	}

	position := 1
	if raw := r.URL.Query().Get("position"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid position")
			return
		}
		position = n
	}

	writeJSON(w, http.StatusOK, PositionFactors(venue, time.Now(), position))
}

// handlePricePreview resolves shorthand positions ("next", "next_plus_1",
// "next_plus_2") against the unplayed count and quotes them.
// GET /songs/price_preview?sessionId=&position=
func (s *Server) handlePricePreview(w http.ResponseWriter, r *http.Request) {
	sess, venue, ok := s.sessionForPricing(w, r)
	if !ok {
		return
	}

	count, err := s.songsCount(r.Context(), sess.ID)
	if err != nil {
		log.Printf("queue-service: price preview count: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	position, resolved := resolvePosition(r.URL.Query().Get("position"), count)
	if !resolved || position <= 0 {
		writeError(w, http.StatusBadRequest, "invalid position")
		return
	}

	now := time.Now()
	factors := PositionFactors(venue, now, position)
	writeJSON(w, http.StatusOK, map[string]any{
		"position":     position,
		"priceCents":   factors.FinalPriceCents,
		"priceDisplay": formatCents(factors.FinalPriceCents),
		"factors":      factors,
	})
}
