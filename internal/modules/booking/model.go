// README: Booking aggregate, status definitions and the transition table.
package booking

import (
	"errors"
	"time"

	"ridebook/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound          = errors.New("booking not found")
	ErrInvalidTransition = errors.New("invalid booking transition")
	ErrConflict          = errors.New("booking state conflict")
	ErrForbidden         = errors.New("actor not allowed")
	ErrBadRequest        = errors.New("bad request")
)

type Booking struct {
	ID            types.ID
	RideID        types.ID
	UserID        types.ID
	DriverID      types.ID
	Seats         int
	TotalPrice    types.Money
	Status        Status
	StatusVersion int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Event struct {
	ID         int64
	BookingID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the booking state flow as code.
// completed, rejected and cancelled are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	_, ok := AllowedTransitions[s]
	return !ok
}

// HoldsSeats reports whether a booking in this status still counts against ride capacity.
func (s Status) HoldsSeats() bool {
	return s == StatusPending || s == StatusApproved || s == StatusCompleted
}

func releasesSeats(to Status) bool {
	return to == StatusRejected || to == StatusCancelled
}

func ParseStatus(v string) (Status, bool) {
	switch s := Status(v); s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled:
		return s, true
	}
	return "", false
}

func (b *Booking) clone() *Booking {
	c := *b
	return &c
}
