// README: Booking orchestrator: reserves seats, prices bookings and drives the status machine.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ridebook/internal/infra"
	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/billing"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type Seats interface {
	Reserve(ctx context.Context, rideID types.ID, seats int) (*availability.Reservation, error)
	Release(ctx context.Context, rideID types.ID, seats int) (*ride.Ride, error)
}

type FeeConfig interface {
	FeePercent(ctx context.Context) types.Percent
}

type Ledger interface {
	RecordFee(ctx context.Context, cmd billing.RecordCommand) (*billing.Record, error)
}

// maxTransitionAttempts bounds re-evaluation after losing a status race.
const maxTransitionAttempts = 3

type Deps struct {
	UnitOfWork infra.UnitOfWork
	Store      Repository
	Seats      Seats
	Fees       FeeConfig
	Ledger     Ledger
	Log        logrus.FieldLogger
}

type Service struct {
	uow    infra.UnitOfWork
	store  Repository
	seats  Seats
	fees   FeeConfig
	ledger Ledger
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewService(deps Deps) *Service {
	uow := deps.UnitOfWork
	if uow == nil {
		uow = infra.NoopUnitOfWork{}
	}
	return &Service{
		uow:    uow,
		store:  deps.Store,
		seats:  deps.Seats,
		fees:   deps.Fees,
		ledger: deps.Ledger,
		log:    deps.Log,
		now:    time.Now,
	}
}

type CreateCommand struct {
	RideID types.ID
	UserID types.ID
	Seats  int
}

type TransitionCommand struct {
	BookingID types.ID
	To        Status
	// ActorID empty means a system-initiated change.
	ActorID types.ID
}

// Create holds the seats and records a pending booking. Reservation failures are returned
// as-is; retries belong to the caller. Billing is not recorded here.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	if cmd.Seats < 1 {
		return nil, availability.ErrInvalidQuantity
	}
	if cmd.UserID == "" || cmd.RideID == "" {
		return nil, ErrBadRequest
	}

	var out *Booking
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.seats.Reserve(ctx, cmd.RideID, cmd.Seats)
		if err != nil {
			return err
		}
		b, err := s.persistReservation(ctx, cmd, res)
		if err != nil {
			s.compensateReserve(ctx, res)
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"booking_id":  out.ID,
		"ride_id":     out.RideID,
		"seats":       out.Seats,
		"total_price": out.TotalPrice.String(),
	}).Info("booking created")
	return out, nil
}

func (s *Service) persistReservation(ctx context.Context, cmd CreateCommand, res *availability.Reservation) (*Booking, error) {
	total, err := pricing.TotalPrice(res.PricePerSeat, res.Seats)
	if err != nil {
		return nil, err
	}
	now := s.now()
	b := &Booking{
		ID:         types.NewID(),
		RideID:     res.RideID,
		UserID:     cmd.UserID,
		DriverID:   res.DriverID,
		Seats:      res.Seats,
		TotalPrice: total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	actor := cmd.UserID
	if err := s.store.AppendEvent(ctx, &Event{
		BookingID:  b.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorID:    &actor,
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// compensateReserve gives seats back when no database transaction will roll them back.
func (s *Service) compensateReserve(ctx context.Context, res *availability.Reservation) {
	if _, inTx := infra.TxFromContext(ctx); inTx {
		return
	}
	if _, err := s.seats.Release(ctx, res.RideID, res.Seats); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"ride_id":        res.RideID,
			"reservation_id": res.ID,
			"seats":          res.Seats,
		}).Error("compensating seat release failed")
	}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByRide(ctx context.Context, rideID types.ID) ([]*Booking, error) {
	return s.store.ListByRide(ctx, rideID)
}

func (s *Service) Cancel(ctx context.Context, id, actorID types.ID) (*Booking, error) {
	return s.Transition(ctx, TransitionCommand{BookingID: id, To: StatusCancelled, ActorID: actorID})
}

// Transition moves a booking along the transition table. Asking for the status the booking
// already has is a no-op that returns the current booking to a permitted actor, so duplicate
// cancels release once.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Booking, error) {
	if _, ok := ParseStatus(string(cmd.To)); !ok || cmd.To == StatusPending {
		return nil, ErrInvalidTransition
	}
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		var out *Booking
		err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
			b, err := s.applyTransition(ctx, cmd)
			out = b
			return err
		})
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrConflict
}

func (s *Service) applyTransition(ctx context.Context, cmd TransitionCommand) (*Booking, error) {
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !actorAllowed(b, cmd) {
		return nil, ErrForbidden
	}
	if b.Status == cmd.To {
		return b, nil
	}
	if !CanTransition(b.Status, cmd.To) {
		return nil, ErrInvalidTransition
	}

	ok, err := s.store.UpdateStatus(ctx, b.ID, b.Status, cmd.To, b.StatusVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	from := b.Status

	if err := s.applySideEffects(ctx, b, cmd.To); err != nil {
		s.revertStatus(ctx, b, from, cmd.To)
		return nil, err
	}

	var actor *types.ID
	if cmd.ActorID != "" {
		a := cmd.ActorID
		actor = &a
	}
	now := s.now()
	if err := s.store.AppendEvent(ctx, &Event{
		BookingID:  b.ID,
		FromStatus: from,
		ToStatus:   cmd.To,
		ActorID:    actor,
		CreatedAt:  now,
	}); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"ride_id":    b.RideID,
		"from":       from,
		"to":         cmd.To,
	}).Info("booking transitioned")

	b.Status = cmd.To
	b.StatusVersion++
	b.UpdatedAt = now
	return b, nil
}

func (s *Service) applySideEffects(ctx context.Context, b *Booking, to Status) error {
	switch {
	case releasesSeats(to):
		if _, err := s.seats.Release(ctx, b.RideID, b.Seats); err != nil {
			return fmt.Errorf("release seats for booking %s: %w", b.ID, err)
		}
	case to == StatusCompleted:
		if _, err := s.ledger.RecordFee(ctx, billing.RecordCommand{
			BookingID:   b.ID,
			ProviderID:  b.DriverID,
			ServiceType: billing.ServiceTypeRide,
			Subtotal:    b.TotalPrice,
			FeePercent:  s.fees.FeePercent(ctx),
		}); err != nil {
			return fmt.Errorf("record fee for booking %s: %w", b.ID, err)
		}
	}
	return nil
}

// revertStatus undoes a won status CAS when no database transaction will roll it back.
func (s *Service) revertStatus(ctx context.Context, b *Booking, from, to Status) {
	if _, inTx := infra.TxFromContext(ctx); inTx {
		return
	}
	ok, err := s.store.UpdateStatus(ctx, b.ID, to, from, b.StatusVersion+1)
	if err != nil || !ok {
		s.log.WithError(err).WithFields(logrus.Fields{
			"booking_id": b.ID,
			"from":       to,
			"to":         from,
		}).Error("revert booking status failed")
	}
}

// actorAllowed: the driver decides approve/reject/complete, either party may cancel.
func actorAllowed(b *Booking, cmd TransitionCommand) bool {
	if cmd.ActorID == "" {
		return true
	}
	switch cmd.To {
	case StatusCancelled:
		return cmd.ActorID == b.UserID || cmd.ActorID == b.DriverID
	default:
		return cmd.ActorID == b.DriverID
	}
}
