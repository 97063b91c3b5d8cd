// README: Ride catalog: read-only ride views plus driver-side publish and lifecycle.
package ride

import (
	"context"
	"strings"
	"time"

	"ridebook/internal/types"
)

type Service struct {
	store Repository
	now   func() time.Time
}

func NewService(store Repository) *Service {
	return &Service{store: store, now: time.Now}
}

type CreateCommand struct {
	DriverID     types.ID
	Origin       string
	Destination  string
	DepartureAt  time.Time
	PricePerSeat types.Money
	Capacity     int
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	if cmd.DriverID == "" || strings.TrimSpace(cmd.Origin) == "" || strings.TrimSpace(cmd.Destination) == "" {
		return nil, ErrBadRequest
	}
	if cmd.Capacity < 1 || cmd.PricePerSeat.Amount <= 0 || cmd.DepartureAt.IsZero() {
		return nil, ErrBadRequest
	}
	now := s.now()
	r := &Ride{
		ID:             types.NewID(),
		DriverID:       cmd.DriverID,
		Origin:         strings.TrimSpace(cmd.Origin),
		Destination:    strings.TrimSpace(cmd.Destination),
		DepartureAt:    cmd.DepartureAt,
		PricePerSeat:   cmd.PricePerSeat,
		Capacity:       cmd.Capacity,
		AvailableSeats: cmd.Capacity,
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

// GetForUpdate must be used inside a unit of work when the caller needs the latest committed seat count.
func (s *Service) GetForUpdate(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.GetForUpdate(ctx, id)
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID) ([]*Ride, error) {
	return s.store.ListByDriver(ctx, driverID)
}

// Complete and Cancel are the external lifecycle exits; both stop further reservations.
func (s *Service) Complete(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.SetStatus(ctx, id, StatusCompleted)
}

func (s *Service) Cancel(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.SetStatus(ctx, id, StatusCancelled)
}
