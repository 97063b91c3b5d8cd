// README: Billing store backed by PostgreSQL (append-only per booking).
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ridebook/internal/infra"
	"ridebook/internal/types"
)

type Repository interface {
	// Create returns errDuplicate when a record for the booking already exists.
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id types.ID) (*Record, error)
	GetByBooking(ctx context.Context, bookingID types.ID) (*Record, error)
	// MarkPaid flips pending -> completed; false means the record was not pending.
	MarkPaid(ctx context.Context, id types.ID, method string, at time.Time) (bool, error)
	ListPendingByProvider(ctx context.Context, providerID types.ID) ([]*Record, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const recordColumns = `id, booking_id, provider_id, service_type, subtotal, platform_fee, net_amount,
	currency, fee_basis_points, payment_status, payment_method, paid_at, created_at`

func (s *Store) Create(ctx context.Context, r *Record) error {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		INSERT INTO billing_records (
			id, booking_id, provider_id, service_type, subtotal, platform_fee, net_amount,
			currency, fee_basis_points, payment_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (booking_id) DO NOTHING`,
		string(r.ID), string(r.BookingID), string(r.ProviderID), r.ServiceType,
		r.Subtotal.Amount, r.PlatformFee.Amount, r.NetAmount.Amount,
		r.Subtotal.Currency, r.FeePercent.BasisPoints(), string(r.PaymentStatus), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert billing record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errDuplicate
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Record, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `SELECT `+recordColumns+` FROM billing_records WHERE id = $1`, string(id))
	return scanRecord(row)
}

func (s *Store) GetByBooking(ctx context.Context, bookingID types.ID) (*Record, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `SELECT `+recordColumns+` FROM billing_records WHERE booking_id = $1`, string(bookingID))
	return scanRecord(row)
}

func (s *Store) MarkPaid(ctx context.Context, id types.ID, method string, at time.Time) (bool, error) {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE billing_records
		SET payment_status = 'completed', payment_method = $2, paid_at = $3
		WHERE id = $1 AND payment_status = 'pending'`,
		string(id), method, at,
	)
	if err != nil {
		return false, fmt.Errorf("mark billing record paid: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListPendingByProvider(ctx context.Context, providerID types.ID) ([]*Record, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT `+recordColumns+` FROM billing_records
		WHERE provider_id = $1 AND payment_status = 'pending'
		ORDER BY created_at ASC`, string(providerID),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending billing records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	var id, bookingID, providerID, status, currency string
	var bp int64
	var method *string
	err := row.Scan(
		&id, &bookingID, &providerID, &r.ServiceType,
		&r.Subtotal.Amount, &r.PlatformFee.Amount, &r.NetAmount.Amount,
		&currency, &bp, &status, &method, &r.PaidAt, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan billing record: %w", err)
	}
	r.ID = types.ID(id)
	r.BookingID = types.ID(bookingID)
	r.ProviderID = types.ID(providerID)
	r.Subtotal.Currency = currency
	r.PlatformFee.Currency = currency
	r.NetAmount.Currency = currency
	r.FeePercent = types.Percent(bp)
	r.PaymentStatus = PaymentStatus(status)
	if method != nil {
		r.PaymentMethod = *method
	}
	return &r, nil
}
