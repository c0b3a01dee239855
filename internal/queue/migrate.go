package queue

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		log.Printf("queue-service: migrate pgcrypto: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS users (
          id              uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          display_name    TEXT NOT NULL,
          email           TEXT UNIQUE,
          password_digest TEXT,
          auth_provider   TEXT NOT NULL DEFAULT 'guest',
          role            TEXT NOT NULL DEFAULT 'user',
          balance_cents   INT NOT NULL DEFAULT 10000,
          created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("queue-service: migrate users: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS venues (
          id                    uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          host_user_id          uuid NOT NULL REFERENCES users(id),
          name                  TEXT NOT NULL,
          location              TEXT NOT NULL DEFAULT '',
          capacity              INT NOT NULL DEFAULT 0,
          pricing_enabled       BOOLEAN NOT NULL DEFAULT TRUE,
          base_price_cents      INT NOT NULL DEFAULT 100,
          min_price_cents       INT NOT NULL DEFAULT 1,
          max_price_cents       INT NOT NULL DEFAULT 50000,
          price_multiplier      DOUBLE PRECISION NOT NULL DEFAULT 1.0,
          peak_hours_start      INT NOT NULL DEFAULT 19,
          peak_hours_end        INT NOT NULL DEFAULT 23,
          peak_hours_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1.5,
          created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
          CONSTRAINT venues_price_bounds CHECK (min_price_cents <= max_price_cents)
      )
    `); err != nil {
		log.Printf("queue-service: migrate venues: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS sessions (
          id                   uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          venue_id             uuid NOT NULL REFERENCES venues(id) ON DELETE CASCADE,
          status               TEXT NOT NULL DEFAULT 'active',
          join_code            TEXT NOT NULL,
          started_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
          ended_at             TIMESTAMPTZ,
          currently_playing_id uuid,
          playback_started_at  TIMESTAMPTZ,
          created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("queue-service: migrate sessions: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS queue_items (
          id                   uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          session_id           uuid NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
          user_id              uuid REFERENCES users(id) ON DELETE SET NULL,
          title                TEXT NOT NULL,
          artist               TEXT NOT NULL,
          external_id          TEXT NOT NULL DEFAULT '',
          cover_url            TEXT NOT NULL DEFAULT '',
          preview_url          TEXT NOT NULL DEFAULT '',
          duration_ms          INT NOT NULL DEFAULT 0,
          base_priority        INT NOT NULL DEFAULT 0,
          vote_score           INT NOT NULL DEFAULT 0,
          vote_count           INT NOT NULL DEFAULT 0,
          status               TEXT NOT NULL DEFAULT 'pending',
          played_at            TIMESTAMPTZ,
          is_currently_playing BOOLEAN NOT NULL DEFAULT FALSE,
          position_paid_cents  INT NOT NULL DEFAULT 0,
          refund_amount_cents  INT NOT NULL DEFAULT 0,
          inserted_at_position INT,
          created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("queue-service: migrate queue_items: %v", err)
		return err
	}

	// Ledger rows are append-only; there is deliberately no UPDATE path.
	if _, err := pool.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS balance_transactions (
          id                  uuid PRIMARY KEY DEFAULT gen_random_uuid(),
          user_id             uuid NOT NULL REFERENCES users(id) ON DELETE CASCADE,
          amount_cents        INT NOT NULL,
          transaction_type    TEXT NOT NULL,
          description         TEXT NOT NULL DEFAULT '',
          queue_item_id       uuid REFERENCES queue_items(id) ON DELETE SET NULL,
          balance_after_cents INT NOT NULL,
          created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
      )
    `); err != nil {
		log.Printf("queue-service: migrate balance_transactions: %v", err)
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_join_code
      ON sessions(join_code)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_sessions_venue_status
      ON sessions(venue_id, status)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_queue_items_session_pending
      ON queue_items(session_id, status, played_at)
    `); err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_balance_transactions_user_created
      ON balance_transactions(user_id, created_at)
    `); err != nil {
		return err
	}

	return nil
}
