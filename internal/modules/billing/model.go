// README: Billing record (platform fee claim) and payment status definitions.
package billing

import (
	"errors"
	"time"

	"ridebook/internal/types"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

const ServiceTypeRide = "ride"

var (
	ErrNotFound   = errors.New("billing record not found")
	ErrBadRequest = errors.New("bad request")
	errDuplicate  = errors.New("billing record already exists for booking")
)

// Record is created once per booking; FeePercent is frozen at creation and never recomputed.
type Record struct {
	ID            types.ID
	BookingID     types.ID
	ProviderID    types.ID
	ServiceType   string
	Subtotal      types.Money
	PlatformFee   types.Money
	NetAmount     types.Money
	FeePercent    types.Percent
	PaymentStatus PaymentStatus
	PaymentMethod string
	PaidAt        *time.Time
	CreatedAt     time.Time
}

func (r *Record) clone() *Record {
	c := *r
	if r.PaidAt != nil {
		t := *r.PaidAt
		c.PaidAt = &t
	}
	return &c
}
