package queue

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/jackc/pgx/v5"
)

var joinCodePattern = regexp.MustCompile(`^\d{6}$`)

// validJoinCode reports whether code looks like a 6-digit join code.
func validJoinCode(code string) bool {
	return joinCodePattern.MatchString(code)
}

// generateJoinCode draws 6-digit codes until one is free. Codes are unique
// across all sessions, not just active ones, so an ended session's code is
// never recycled while its history is around.
func generateJoinCode(ctx context.Context, db querier) (string, error) {
	for attempt := 0; attempt < 25; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
		if err != nil {
			return "", err
		}
		code := fmt.Sprintf("%06d", n.Int64())

		var exists bool
		if err := db.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM sessions WHERE join_code = $1)
		`, code).Scan(&exists); err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not find a free join code")
}

// findActiveSessionByCode resolves a join code to an active session.
func findActiveSessionByCode(ctx context.Context, db querier, code string) (*Session, error) {
	if !validJoinCode(code) {
		return nil, pgx.ErrNoRows
	}

	var sess Session
	err := db.QueryRow(ctx, `
		SELECT id, venue_id, status, join_code, started_at, ended_at,
		       currently_playing_id, playback_started_at, created_at
		FROM sessions
		WHERE join_code = $1 AND status = 'active'
	`, code).Scan(
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
	if err != nil {
		return nil, err
	}
	return &sess, nil
}
