// README: Availability manager: the only writer of a ride's available seat count.
package availability

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

var (
	ErrInvalidQuantity  = errors.New("invalid seat quantity")
	ErrSeatsUnavailable = ride.ErrSeatsUnavailable
	ErrRideNotFound     = ride.ErrNotFound
	ErrRideNotActive    = ride.ErrNotActive
	ErrCapacityExceeded = ride.ErrCapacityExceeded
)

// SeatStore must apply each seat change as one atomic step per ride row.
type SeatStore interface {
	Get(ctx context.Context, id types.ID) (*ride.Ride, error)
	ReserveSeats(ctx context.Context, id types.ID, seats int) (*ride.Ride, error)
	ReleaseSeats(ctx context.Context, id types.ID, seats int) (*ride.Ride, error)
}

// Reservation identifies one successful seat hold.
type Reservation struct {
	ID             types.ID
	RideID         types.ID
	DriverID       types.ID
	Seats          int
	PricePerSeat   types.Money
	AvailableAfter int
	ReservedAt     time.Time
}

type Service struct {
	seats SeatStore
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewService(seats SeatStore, log logrus.FieldLogger) *Service {
	return &Service{seats: seats, log: log, now: time.Now}
}

func (s *Service) Reserve(ctx context.Context, rideID types.ID, seats int) (*Reservation, error) {
	if seats < 1 {
		return nil, ErrInvalidQuantity
	}
	r, err := s.seats.ReserveSeats(ctx, rideID, seats)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"ride_id":   rideID,
		"seats":     seats,
		"available": r.AvailableSeats,
		"status":    r.Status,
	}).Debug("seats reserved")
	return &Reservation{
		ID:             types.NewID(),
		RideID:         r.ID,
		DriverID:       r.DriverID,
		Seats:          seats,
		PricePerSeat:   r.PricePerSeat,
		AvailableAfter: r.AvailableSeats,
		ReservedAt:     s.now(),
	}, nil
}

// Release returns seats to the ride. A release that would push the count above capacity
// is a bookkeeping fault: it is logged and rejected without touching the row.
func (s *Service) Release(ctx context.Context, rideID types.ID, seats int) (*ride.Ride, error) {
	if seats < 1 {
		return nil, ErrInvalidQuantity
	}
	r, err := s.seats.ReleaseSeats(ctx, rideID, seats)
	if errors.Is(err, ErrCapacityExceeded) {
		fields := logrus.Fields{"ride_id": rideID, "seats": seats}
		if current, getErr := s.seats.Get(ctx, rideID); getErr == nil {
			fields["available"] = current.AvailableSeats
			fields["capacity"] = current.Capacity
			fields["status"] = current.Status
		}
		s.log.WithFields(fields).Error("seat release exceeds capacity")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"ride_id":   rideID,
		"seats":     seats,
		"available": r.AvailableSeats,
	}).Debug("seats released")
	return r, nil
}
