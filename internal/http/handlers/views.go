// README: JSON views; money is rendered as a two-decimal string.
package handlers

import (
	"time"

	"ridebook/internal/modules/billing"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type bookingView struct {
	BookingID   types.ID       `json:"booking_id"`
	RideID      types.ID       `json:"ride_id"`
	UserID      types.ID       `json:"user_id"`
	DriverID    types.ID       `json:"driver_id"`
	Status      booking.Status `json:"status"`
	SeatsBooked int            `json:"seats_booked"`
	TotalPrice  types.Money    `json:"total_price"`
	Currency    string         `json:"currency"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func newBookingView(b *booking.Booking) bookingView {
	return bookingView{
		BookingID:   b.ID,
		RideID:      b.RideID,
		UserID:      b.UserID,
		DriverID:    b.DriverID,
		Status:      b.Status,
		SeatsBooked: b.Seats,
		TotalPrice:  b.TotalPrice,
		Currency:    b.TotalPrice.Currency,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

type rideView struct {
	RideID         types.ID    `json:"ride_id"`
	DriverID       types.ID    `json:"driver_id"`
	Origin         string      `json:"origin"`
	Destination    string      `json:"destination"`
	DepartureAt    time.Time   `json:"departure_at"`
	PricePerSeat   types.Money `json:"price_per_seat"`
	Currency       string      `json:"currency"`
	Capacity       int         `json:"capacity"`
	AvailableSeats int         `json:"available_seats"`
	Status         ride.Status `json:"status"`
}

func newRideView(r *ride.Ride) rideView {
	return rideView{
		RideID:         r.ID,
		DriverID:       r.DriverID,
		Origin:         r.Origin,
		Destination:    r.Destination,
		DepartureAt:    r.DepartureAt,
		PricePerSeat:   r.PricePerSeat,
		Currency:       r.PricePerSeat.Currency,
		Capacity:       r.Capacity,
		AvailableSeats: r.AvailableSeats,
		Status:         r.Status,
	}
}

type billingView struct {
	BillingID     types.ID              `json:"billing_id"`
	BookingID     types.ID              `json:"booking_id"`
	ProviderID    types.ID              `json:"provider_id"`
	ServiceType   string                `json:"service_type"`
	Subtotal      types.Money           `json:"subtotal"`
	PlatformFee   types.Money           `json:"platform_fee"`
	NetAmount     types.Money           `json:"net_amount"`
	FeePercentage float64               `json:"fee_percentage"`
	PaymentStatus billing.PaymentStatus `json:"payment_status"`
	PaymentMethod string                `json:"payment_method,omitempty"`
	PaidAt        *time.Time            `json:"paid_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

func newBillingView(r *billing.Record) billingView {
	return billingView{
		BillingID:     r.ID,
		BookingID:     r.BookingID,
		ProviderID:    r.ProviderID,
		ServiceType:   r.ServiceType,
		Subtotal:      r.Subtotal,
		PlatformFee:   r.PlatformFee,
		NetAmount:     r.NetAmount,
		FeePercentage: r.FeePercent.Float64(),
		PaymentStatus: r.PaymentStatus,
		PaymentMethod: r.PaymentMethod,
		PaidAt:        r.PaidAt,
		CreatedAt:     r.CreatedAt,
	}
}
