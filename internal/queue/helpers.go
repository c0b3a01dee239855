package queue

import (
	"context"
)

const (
	itemColumns = `id, session_id, user_id, title, artist, external_id, cover_url,
	       preview_url, duration_ms, base_priority, vote_score, vote_count,
	       status, played_at, is_currently_playing, position_paid_cents,
	       refund_amount_cents, inserted_at_position, created_at`

	sessionColumns = `id, venue_id, status, join_code, started_at, ended_at,
	       currently_playing_id, playback_started_at, created_at`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner, qi *QueueItem) error {
	return row.Scan(
		&qi.ID,
		&qi.SessionID,
		&qi.UserID,
		&qi.Title,
		&qi.Artist,
		&qi.ExternalID,
		&qi.CoverURL,
		&qi.PreviewURL,
		&qi.DurationMs,
		&qi.BasePriority,
		&qi.VoteScore,
		&qi.VoteCount,
		&qi.Status,
		&qi.PlayedAt,
		&qi.IsCurrentlyPlaying,
		&qi.PositionPaidCents,
		&qi.RefundAmountCents,
		&qi.InsertedAtPosition,
		&qi.CreatedAt,
	)
}

func scanSession(row rowScanner, sess *Session) error {
	return row.Scan(
		&sess.ID,
		&sess.VenueID,
		&sess.Status,
		&sess.JoinCode,
		&sess.StartedAt,
		&sess.EndedAt,
		&sess.CurrentlyPlayingID,
		&sess.PlaybackStartedAt,
		&sess.CreatedAt,
	)
}

func (s *Server) loadSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := scanSession(s.db.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE id = $1
	`, id), &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Server) loadVenue(ctx context.Context, id string) (*Venue, error) {
	var v Venue
	err := s.db.QueryRow(ctx, `
		SELECT id, host_user_id, name, location, capacity, pricing_enabled,
		       base_price_cents, min_price_cents, max_price_cents,
		       price_multiplier, peak_hours_start, peak_hours_end,
		       peak_hours_multiplier, created_at
		FROM venues
		WHERE id = $1
	`, id).Scan(
		&v.ID,
		&v.HostUserID,
		&v.Name,
		&v.Location,
		&v.Capacity,
		&v.PricingEnabled,
		&v.BasePriceCents,
		&v.MinPriceCents,
		&v.MaxPriceCents,
		&v.PriceMultiplier,
		&v.PeakHoursStart,
		&v.PeakHoursEnd,
		&v.PeakHoursMultiplier,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// loadSessionVenue resolves the venue owning a session (pricing config and
// host authorization both hang off it).
func (s *Server) loadSessionVenue(ctx context.Context, sessionID string) (*Session, *Venue, error) {
	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	venue, err := s.loadVenue(ctx, sess.VenueID)
	if err != nil {
		return nil, nil, err
	}
	return sess, venue, nil
}

// pendingItems loads the unplayed pending set, the ordering engine's input.
func (s *Server) pendingItems(ctx context.Context, sessionID string) ([]QueueItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+itemColumns+`
		FROM queue_items
		WHERE session_id = $1 AND status = 'pending' AND played_at IS NULL
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []QueueItem{}
	for rows.Next() {
		var qi QueueItem
		if err := scanItem(rows, &qi); err != nil {
			return nil, err
		}
		items = append(items, qi)
	}
	return items, rows.Err()
}

// songsCount is the unplayed pending count the pricing shorthand resolves
// against.
func (s *Server) songsCount(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM queue_items
		WHERE session_id = $1 AND status = 'pending' AND played_at IS NULL
	`, sessionID).Scan(&count)
	return count, err
}

func (s *Server) userRole(ctx context.Context, userID string) (string, error) {
	var role string
	err := s.db.QueryRow(ctx, `
		SELECT role FROM users WHERE id = $1
	`, userID).Scan(&role)
	return role, err
}
