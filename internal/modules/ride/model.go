// README: Ride aggregate, lifecycle statuses, and seat-invariant errors.
package ride

import (
	"errors"
	"time"

	"ridebook/internal/types"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusFull      Status = "full"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound         = errors.New("ride not found")
	ErrNotActive        = errors.New("ride not active")
	ErrSeatsUnavailable = errors.New("seats unavailable")
	ErrCapacityExceeded = errors.New("release exceeds ride capacity")
	ErrBadRequest       = errors.New("bad request")
)

type Ride struct {
	ID             types.ID
	DriverID       types.ID
	Origin         string
	Destination    string
	DepartureAt    time.Time
	PricePerSeat   types.Money
	Capacity       int
	AvailableSeats int
	Status         Status
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Bookable reports whether new reservations may be taken against this ride.
func (r *Ride) Bookable() bool {
	return r.Status == StatusActive
}

// SeatsHeld is the number of seats currently claimed by non-released bookings.
func (r *Ride) SeatsHeld() int {
	return r.Capacity - r.AvailableSeats
}

// consistent checks 0 <= available <= capacity and status=full iff available=0
// (completed/cancelled rides are exempt from the full/active pairing).
func (r *Ride) consistent() bool {
	if r.AvailableSeats < 0 || r.AvailableSeats > r.Capacity {
		return false
	}
	switch r.Status {
	case StatusFull:
		return r.AvailableSeats == 0
	case StatusActive:
		return r.AvailableSeats > 0
	}
	return true
}

func (r *Ride) clone() *Ride {
	c := *r
	return &c
}
