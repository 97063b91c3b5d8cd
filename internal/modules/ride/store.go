// README: Ride store backed by PostgreSQL; seat changes are single conditional UPDATEs.
package ride

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/internal/infra"
	"ridebook/internal/types"
)

// Repository is implemented by the postgres Store and the MemoryStore.
type Repository interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	GetForUpdate(ctx context.Context, id types.ID) (*Ride, error)
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error)
	SetStatus(ctx context.Context, id types.ID, status Status) (*Ride, error)
	ReserveSeats(ctx context.Context, id types.ID, seats int) (*Ride, error)
	ReleaseSeats(ctx context.Context, id types.ID, seats int) (*Ride, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const rideColumns = `id, driver_id, origin, destination, departure_at,
	price_per_seat, currency, capacity, available_seats, status, version, created_at, updated_at`

func (s *Store) Create(ctx context.Context, r *Ride) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO rides (
			id, driver_id, origin, destination, departure_at,
			price_per_seat, currency, capacity, available_seats, status, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		string(r.ID), string(r.DriverID), r.Origin, r.Destination, r.DepartureAt,
		r.PricePerSeat.Amount, r.PricePerSeat.Currency, r.Capacity, r.AvailableSeats,
		string(r.Status), r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id))
	return scanRide(row)
}

// GetForUpdate locks the row when called inside a unit of work.
func (s *Store) GetForUpdate(ctx context.Context, id types.ID) (*Ride, error) {
	if _, ok := infra.TxFromContext(ctx); !ok {
		return s.Get(ctx, id)
	}
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, string(id))
	return scanRide(row)
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT `+rideColumns+` FROM rides
		WHERE driver_id = $1
		ORDER BY departure_at ASC`, string(driverID),
	)
	if err != nil {
		return nil, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status) (*Ride, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		UPDATE rides
		SET status = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status IN ('active', 'full')
		RETURNING `+rideColumns, string(id), string(status),
	)
	r, err := scanRide(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotActive
	}
	return r, err
}

// ReserveSeats decrements available_seats in one statement; the row lock taken by UPDATE
// serializes concurrent reservations for the same ride while leaving other rides untouched.
func (s *Store) ReserveSeats(ctx context.Context, id types.ID, seats int) (*Ride, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		UPDATE rides
		SET available_seats = available_seats - $2,
		    status = CASE WHEN available_seats - $2 = 0 THEN 'full' ELSE status END,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND available_seats >= $2
		RETURNING `+rideColumns, string(id), seats,
	)
	r, err := scanRide(row)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusActive && current.Status != StatusFull {
		return nil, ErrNotActive
	}
	return nil, ErrSeatsUnavailable
}

// ReleaseSeats gives seats back; a release that would overflow capacity changes nothing.
func (s *Store) ReleaseSeats(ctx context.Context, id types.ID, seats int) (*Ride, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
		UPDATE rides
		SET available_seats = available_seats + $2,
		    status = CASE WHEN status = 'full' THEN 'active' ELSE status END,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND available_seats + $2 <= capacity
		RETURNING `+rideColumns, string(id), seats,
	)
	r, err := scanRide(row)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrCapacityExceeded
}

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var id, driverID, status string
	err := row.Scan(
		&id, &driverID, &r.Origin, &r.Destination, &r.DepartureAt,
		&r.PricePerSeat.Amount, &r.PricePerSeat.Currency, &r.Capacity, &r.AvailableSeats,
		&status, &r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan ride: %w", err)
	}
	r.ID = types.ID(id)
	r.DriverID = types.ID(driverID)
	r.Status = Status(status)
	return &r, nil
}
