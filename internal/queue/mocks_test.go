package queue

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MockDB implements DB for handler tests.
type MockDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTxFunc  func(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (m *MockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sql, args...)
	}
	return &MockRows{}, nil
}

func (m *MockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.QueryRowFunc != nil {
		return m.QueryRowFunc(ctx, sql, args...)
	}
	return &MockRow{}
}

func (m *MockDB) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if m.BeginTxFunc != nil {
		return m.BeginTxFunc(ctx, txOptions)
	}
	return &MockTx{}, nil
}

// MockRow implements pgx.Row
type MockRow struct {
	ScanFunc func(dest ...any) error
}

func (m *MockRow) Scan(dest ...any) error {
	if m.ScanFunc != nil {
		return m.ScanFunc(dest...)
	}
	return nil
}

// MockTx implements pgx.Tx
type MockTx struct {
	pgx.Tx // Embed to satisfy interface; unchecked methods panic if called

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (m *MockTx) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTx) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

func (m *MockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (m *MockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.QueryRowFunc != nil {
		return m.QueryRowFunc(ctx, sql, args...)
	}
	return &MockRow{}
}

func (m *MockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, sql, args...)
	}
	return &MockRows{}, nil
}

// MockRows helper for list queries.
type MockRows struct {
	pgx.Rows
	Data [][]any
	Idx  int
}

func (m *MockRows) Next() bool {
	m.Idx++
	return m.Idx <= len(m.Data)
}

func (m *MockRows) Scan(dest ...any) error {
	row := m.Data[m.Idx-1]
	if len(dest) != len(row) {
		return errors.New("column count mismatch")
	}
	for i, v := range row {
		if dest[i] == nil {
			continue
		}
		switch d := dest[i].(type) {
		case *string:
			if v != nil {
				*d = v.(string)
			}
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		case *time.Time:
			if v != nil {
				*d = v.(time.Time)
			}
		case **time.Time:
			if v == nil {
				*d = nil
			} else {
				t := v.(time.Time)
				*d = &t
			}
		case *bool:
			if v != nil {
				*d = v.(bool)
			}
		case *int:
			if v != nil {
				*d = v.(int)
			}
		case **int:
			if v == nil {
				*d = nil
			} else {
				n := v.(int)
				*d = &n
			}
		case *float64:
			if v != nil {
				*d = v.(float64)
			}
		}
	}
	return nil
}

func (m *MockRows) Close()                                       {}
func (m *MockRows) Err() error                                   { return nil }
func (m *MockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *MockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *MockRows) Values() ([]any, error)                       { return nil, nil }
func (m *MockRows) RawValues() [][]byte                          { return nil }
func (m *MockRows) Conn() *pgx.Conn                              { return nil }

// itemRow builds a raw row in itemColumns order for MockRows.
func itemRow(qi QueueItem) []any {
	var playedAt any
	if qi.PlayedAt != nil {
		playedAt = *qi.PlayedAt
	}
	var insertedAt any
	if qi.InsertedAtPosition != nil {
		insertedAt = *qi.InsertedAtPosition
	}
	var userID any
	if qi.UserID != nil {
		userID = *qi.UserID
	}
	return []any{
		qi.ID, qi.SessionID, userID, qi.Title, qi.Artist, qi.ExternalID,
		qi.CoverURL, qi.PreviewURL, qi.DurationMs, qi.BasePriority,
		qi.VoteScore, qi.VoteCount, qi.Status, playedAt,
		qi.IsCurrentlyPlaying, qi.PositionPaidCents, qi.RefundAmountCents,
		insertedAt, qi.CreatedAt,
	}
}

// scanSessionInto fills dest pointers in sessionColumns order.
func scanSessionInto(sess Session, dest ...any) error {
	var endedAt, playingID, playbackAt any
	if sess.EndedAt != nil {
		endedAt = *sess.EndedAt
	}
	if sess.CurrentlyPlayingID != nil {
		playingID = *sess.CurrentlyPlayingID
	}
	if sess.PlaybackStartedAt != nil {
		playbackAt = *sess.PlaybackStartedAt
	}
	row := MockRows{Data: [][]any{{
		sess.ID, sess.VenueID, sess.Status, sess.JoinCode, sess.StartedAt,
		endedAt, playingID, playbackAt, sess.CreatedAt,
	}}}
	row.Next()
	return row.Scan(dest...)
}

// scanVenueInto fills dest pointers in the venue SELECT column order.
func scanVenueInto(v Venue, dest ...any) error {
	row := MockRows{Data: [][]any{{
		v.ID, v.HostUserID, v.Name, v.Location, v.Capacity, v.PricingEnabled,
		v.BasePriceCents, v.MinPriceCents, v.MaxPriceCents, v.PriceMultiplier,
		v.PeakHoursStart, v.PeakHoursEnd, v.PeakHoursMultiplier, v.CreatedAt,
	}}}
	row.Next()
	return row.Scan(dest...)
}
