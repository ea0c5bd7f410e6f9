package location

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUnknownCourier is returned when a position row references a courier id
// the directory does not know (test or ephemeral ids). Such rows are dropped
// by the queue instead of being retried.
var ErrUnknownCourier = errors.New("unknown courier")

const pgForeignKeyViolation = "23503"

// HistoryStore appends position reports to the durable courier_positions
// log. Rows are immutable; nothing in this repository ever updates them.
type HistoryStore struct {
	db *pgxpool.Pool
}

func NewHistoryStore(db *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(ctx context.Context, pos Position) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO courier_positions (courier_id, lat, lng, captured_at)
        VALUES ($1, $2, $3, $4)`,
		string(pos.CourierID),
		pos.Point.Lat,
		pos.Point.Lng,
		pos.CapturedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return ErrUnknownCourier
	}
	return err
}
