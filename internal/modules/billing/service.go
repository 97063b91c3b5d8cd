// README: Billing ledger: records the platform fee owed on a completed booking.
package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ridebook/internal/modules/pricing"
	"ridebook/internal/types"
)

type Service struct {
	store Repository
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(store Repository, log logrus.FieldLogger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

type RecordCommand struct {
	BookingID   types.ID
	ProviderID  types.ID
	ServiceType string
	Subtotal    types.Money
	FeePercent  types.Percent
}

// RecordFee freezes the fee breakdown for a booking. A second call for the same booking
// returns the record created by the first.
func (s *Service) RecordFee(ctx context.Context, cmd RecordCommand) (*Record, error) {
	if cmd.BookingID == "" || cmd.ProviderID == "" {
		return nil, ErrBadRequest
	}
	breakdown, err := pricing.ComputeFeeBreakdown(cmd.Subtotal, cmd.FeePercent)
	if err != nil {
		return nil, err
	}
	serviceType := strings.TrimSpace(cmd.ServiceType)
	if serviceType == "" {
		serviceType = ServiceTypeRide
	}
	r := &Record{
		ID:            types.NewID(),
		BookingID:     cmd.BookingID,
		ProviderID:    cmd.ProviderID,
		ServiceType:   serviceType,
		Subtotal:      breakdown.Subtotal,
		PlatformFee:   breakdown.PlatformFee,
		NetAmount:     breakdown.NetAmount,
		FeePercent:    breakdown.FeePercent,
		PaymentStatus: PaymentPending,
		CreatedAt:     s.now(),
	}
	err = s.store.Create(ctx, r)
	if errors.Is(err, errDuplicate) {
		return s.store.GetByBooking(ctx, cmd.BookingID)
	}
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"billing_id":   r.ID,
		"booking_id":   r.BookingID,
		"subtotal":     r.Subtotal.String(),
		"platform_fee": r.PlatformFee.String(),
		"fee_percent":  r.FeePercent.String(),
	}).Info("platform fee recorded")
	return r, nil
}

// MarkPaid is idempotent: paying a completed record returns it unchanged.
func (s *Service) MarkPaid(ctx context.Context, id types.ID, paymentMethod string) (*Record, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.PaymentStatus == PaymentCompleted {
		return r, nil
	}
	if _, err := s.store.MarkPaid(ctx, id, strings.TrimSpace(paymentMethod), s.now()); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}

func (s *Service) PendingForProvider(ctx context.Context, providerID types.ID) ([]*Record, error) {
	if providerID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListPendingByProvider(ctx, providerID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Record, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByBooking(ctx context.Context, bookingID types.ID) (*Record, error) {
	return s.store.GetByBooking(ctx, bookingID)
}
