// README: Booking store backed by PostgreSQL; status changes are version-checked.
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/internal/infra"
	"ridebook/internal/types"
)

type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListByRide(ctx context.Context, rideID types.ID) ([]*Booking, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const bookingColumns = `id, ride_id, user_id, driver_id, seats_booked, total_price, currency,
	status, status_version, created_at, updated_at`

func (s *Store) Create(ctx context.Context, b *Booking) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO bookings (
			id, ride_id, user_id, driver_id, seats_booked, total_price, currency,
			status, status_version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(b.ID), string(b.RideID), string(b.UserID), string(b.DriverID),
		b.Seats, b.TotalPrice.Amount, b.TotalPrice.Currency,
		string(b.Status), b.StatusVersion, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Booking, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, string(id))
	return scanBooking(row)
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    status_version = status_version + 1,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO booking_state_events (
			booking_id, from_status, to_status, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5)`,
		string(e.BookingID),
		string(e.FromStatus),
		string(e.ToStatus),
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append booking event: %w", err)
	}
	return nil
}

func (s *Store) ListByRide(ctx context.Context, rideID types.ID) ([]*Booking, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE ride_id = $1
		ORDER BY created_at ASC`, string(rideID),
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var id, rideID, userID, driverID, status string
	err := row.Scan(
		&id, &rideID, &userID, &driverID, &b.Seats, &b.TotalPrice.Amount, &b.TotalPrice.Currency,
		&status, &b.StatusVersion, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan booking: %w", err)
	}
	b.ID = types.ID(id)
	b.RideID = types.ID(rideID)
	b.UserID = types.ID(userID)
	b.DriverID = types.ID(driverID)
	b.Status = Status(status)
	return &b, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
