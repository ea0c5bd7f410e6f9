package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch/internal/types"
)

var (
	ErrNotFound = errors.New("order not found")
)

// Store persists orders on Postgres. Every transition method is a
// conditional UPDATE guarded by the current status and status_version, so a
// lost race surfaces as ok=false instead of a second winner.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, o *Order) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO orders (
            id, pickup_lat, pickup_lng, payout_amount, payout_currency,
            priority, search_radius_m, max_offers, offer_timeout_ms,
            status, status_version, created_at
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8, $9,
            $10, $11, $12
        )`,
		string(o.ID),
		o.Pickup.Lat, o.Pickup.Lng,
		o.Payout.Amount, o.Payout.Currency,
		string(o.Priority),
		o.SearchRadiusM,
		o.MaxOffers,
		o.OfferTimeout.Milliseconds(),
		string(o.Status),
		o.StatusVersion,
		o.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
        SELECT id, pickup_lat, pickup_lng, payout_amount, payout_currency,
               priority, search_radius_m, max_offers, offer_timeout_ms,
               status, status_version, offered_courier_id, courier_id,
               created_at, offered_at, assigned_at, closed_at
        FROM orders
        WHERE id = $1`, string(id),
	)

	var o Order
	var timeoutMS int64
	var offeredTo, courierID sql.NullString
	var offeredAt, assignedAt, closedAt sql.NullTime

	err := row.Scan(
		&o.ID, &o.Pickup.Lat, &o.Pickup.Lng, &o.Payout.Amount, &o.Payout.Currency,
		&o.Priority, &o.SearchRadiusM, &o.MaxOffers, &timeoutMS,
		&o.Status, &o.StatusVersion, &offeredTo, &courierID,
		&o.CreatedAt, &offeredAt, &assignedAt, &closedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	o.OfferTimeout = time.Duration(timeoutMS) * time.Millisecond
	o.OfferedCourierID = toIDPtr(offeredTo)
	o.CourierID = toIDPtr(courierID)
	o.OfferedAt = toTimePtr(offeredAt)
	o.AssignedAt = toTimePtr(assignedAt)
	o.ClosedAt = toTimePtr(closedAt)
	return &o, nil
}

// MarkOffered points the outstanding offer at courierID. Valid from
// searching (first offer) or offered (next candidate in the ranked list).
func (s *Store) MarkOffered(ctx context.Context, id, courierID types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = 'offered',
            status_version = status_version + 1,
            offered_courier_id = $1,
            offered_at = NOW()
        WHERE id = $2
          AND status IN ('searching', 'offered')
          AND status_version = $3`,
		string(courierID), string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AssignFromOffer commits an acceptance, but only while the order is still
// offered to that exact courier. A stale accept after timeout, cancellation
// or another committed assignment matches zero rows.
func (s *Store) AssignFromOffer(ctx context.Context, id, courierID types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = 'assigned',
            status_version = status_version + 1,
            courier_id = $1,
            assigned_at = NOW()
        WHERE id = $2
          AND status = 'offered'
          AND offered_courier_id = $1
          AND status_version = $3`,
		string(courierID), string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AssignDirect commits the priority fast path: searching straight to
// assigned, guarded against any concurrent assignment.
func (s *Store) AssignDirect(ctx context.Context, id, courierID types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = 'assigned',
            status_version = status_version + 1,
            courier_id = $1,
            assigned_at = NOW()
        WHERE id = $2
          AND status = 'searching'
          AND courier_id IS NULL
          AND status_version = $3`,
		string(courierID), string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Close moves the order to a non-assigned terminal state (unassignable or
// cancelled) if it is still in flight.
func (s *Store) Close(ctx context.Context, id types.ID, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = $1,
            status_version = status_version + 1,
            offered_courier_id = NULL,
            closed_at = NOW()
        WHERE id = $2
          AND status IN ('searching', 'offered')
          AND status_version = $3`,
		string(to), string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Requeue returns an offered order to searching so a later attempt starts
// from a clean slate.
func (s *Store) Requeue(ctx context.Context, id types.ID, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE orders
        SET status = 'searching',
            status_version = status_version + 1,
            offered_courier_id = NULL
        WHERE id = $1
          AND status = 'offered'
          AND status_version = $2`,
		string(id), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListStaleOffered finds orders stuck in offered with no negotiation alive,
// e.g. after a process restart mid-offer. The retry job requeues them.
func (s *Store) ListStaleOffered(ctx context.Context, olderThan time.Duration, limit int) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id FROM orders
        WHERE status = 'offered'
          AND offered_at < NOW() - make_interval(secs => $1)
        ORDER BY offered_at
        LIMIT $2`, olderThan.Seconds(), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

// ListSearching feeds the retry job with orders still waiting for a courier.
func (s *Store) ListSearching(ctx context.Context, limit int) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id FROM orders
        WHERE status = 'searching'
        ORDER BY created_at
        LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}

func toIDPtr(v sql.NullString) *types.ID {
	if !v.Valid {
		return nil
	}
	id := types.ID(v.String)
	return &id
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
