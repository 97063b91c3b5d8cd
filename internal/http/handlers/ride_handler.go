// README: Ride handlers: read view, driver publish, lifecycle and booking list.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridebook/internal/http/middleware"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type RideHandler struct {
	rides    *ride.Service
	bookings *booking.Service
	currency string
	log      logrus.FieldLogger
}

func NewRideHandler(rides *ride.Service, bookings *booking.Service, currency string, log logrus.FieldLogger) *RideHandler {
	return &RideHandler{rides: rides, bookings: bookings, currency: currency, log: log}
}

type createRideReq struct {
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	DepartureAt  time.Time `json:"departure_at"`
	PricePerSeat string    `json:"price_per_seat"`
	Capacity     int       `json:"capacity"`
}

func (h *RideHandler) Create(c *gin.Context) {
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeBadRequest)
		return
	}
	price, err := types.ParseMoney(req.PricePerSeat, h.currency)
	if err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidAmount)
		return
	}
	r, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		DriverID:     types.ID(middleware.CallerUID(c)),
		Origin:       req.Origin,
		Destination:  req.Destination,
		DepartureAt:  req.DepartureAt,
		PricePerSeat: price,
		Capacity:     req.Capacity,
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, newRideView(r))
}

func (h *RideHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, newRideView(r))
}

// Mine lists the calling driver's rides.
func (h *RideHandler) Mine(c *gin.Context) {
	list, err := h.rides.ListByDriver(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	out := make([]rideView, 0, len(list))
	for _, r := range list {
		out = append(out, newRideView(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": out})
}

// Bookings lists bookings on a ride for its driver.
func (h *RideHandler) Bookings(c *gin.Context) {
	r, ok := h.ownedRide(c)
	if !ok {
		return
	}
	list, err := h.bookings.ListByRide(c.Request.Context(), r.ID)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	out := make([]bookingView, 0, len(list))
	for _, b := range list {
		out = append(out, newBookingView(b))
	}
	writeJSON(c, http.StatusOK, gin.H{"bookings": out})
}

func (h *RideHandler) Complete(c *gin.Context) {
	h.lifecycle(c, h.rides.Complete)
}

func (h *RideHandler) Cancel(c *gin.Context) {
	h.lifecycle(c, h.rides.Cancel)
}

func (h *RideHandler) lifecycle(c *gin.Context, fn func(ctx context.Context, id types.ID) (*ride.Ride, error)) {
	r, ok := h.ownedRide(c)
	if !ok {
		return
	}
	updated, err := fn(c.Request.Context(), r.ID)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, newRideView(updated))
}

func (h *RideHandler) ownedRide(c *gin.Context) (*ride.Ride, bool) {
	id, ok := pathID(c, "id")
	if !ok {
		return nil, false
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return nil, false
	}
	if middleware.CallerRole(c) != middleware.RoleAdmin && r.DriverID != types.ID(middleware.CallerUID(c)) {
		writeError(c, http.StatusForbidden, CodeForbidden)
		return nil, false
	}
	return r, true
}
