package courier

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"dispatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetByIDs loads eligibility attributes for the given couriers. Unknown ids
// are simply absent from the result map.
func (s *Store) GetByIDs(ctx context.Context, ids []types.ID) (map[types.ID]Courier, error) {
	if len(ids) == 0 {
		return map[types.ID]Courier{}, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = string(id)
	}

	rows, err := s.db.Query(ctx, `
        SELECT id, name, online, approved, blocked, busy,
               acceptance_rate, rating, total_orders
        FROM couriers
        WHERE id = ANY($1)`, raw,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[types.ID]Courier, len(ids))
	for rows.Next() {
		var c Courier
		var rating sql.NullFloat64
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Online, &c.Approved, &c.Blocked, &c.Busy,
			&c.AcceptanceRate, &rating, &c.TotalOrders,
		); err != nil {
			return nil, err
		}
		if rating.Valid {
			r := rating.Float64
			c.Rating = &r
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// Claim flips the busy flag only if the courier is still idle and eligible.
// Returns false when someone else got there first.
func (s *Store) Claim(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE couriers
        SET busy = TRUE
        WHERE id = $1 AND busy = FALSE AND online AND approved AND NOT blocked`,
		string(id),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Release returns the courier to the idle pool.
func (s *Store) Release(ctx context.Context, id types.ID) error {
	_, err := s.db.Exec(ctx, `UPDATE couriers SET busy = FALSE WHERE id = $1`, string(id))
	return err
}
