// README: Booking handlers for create/get and status transitions.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridebook/internal/http/middleware"
	"ridebook/internal/modules/booking"
	"ridebook/internal/types"
)

type BookingHandler struct {
	booking *booking.Service
	log     logrus.FieldLogger
}

func NewBookingHandler(svc *booking.Service, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{booking: svc, log: log}
}

type createBookingReq struct {
	RideID         string `json:"ride_id"`
	SeatsRequested int    `json:"seats_requested"`
}

type createBookingResp struct {
	BookingID   types.ID       `json:"booking_id"`
	Status      booking.Status `json:"status"`
	TotalPrice  types.Money    `json:"total_price"`
	SeatsBooked int            `json:"seats_booked"`
}

// Create books seats for the calling user.
func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeBadRequest)
		return
	}
	rideID := types.ID(req.RideID)
	if !rideID.Valid() {
		writeError(c, http.StatusBadRequest, CodeBadRequest)
		return
	}
	b, err := h.booking.Create(c.Request.Context(), booking.CreateCommand{
		RideID: rideID,
		UserID: types.ID(middleware.CallerUID(c)),
		Seats:  req.SeatsRequested,
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusCreated, createBookingResp{
		BookingID:   b.ID,
		Status:      b.Status,
		TotalPrice:  b.TotalPrice,
		SeatsBooked: b.Seats,
	})
}

// Get is visible to the passenger, the driver and admins.
func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.booking.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	if !canView(c, b) {
		writeError(c, http.StatusForbidden, CodeForbidden)
		return
	}
	writeJSON(c, http.StatusOK, newBookingView(b))
}

func (h *BookingHandler) Cancel(c *gin.Context)   { h.transition(c, booking.StatusCancelled) }
func (h *BookingHandler) Approve(c *gin.Context)  { h.transition(c, booking.StatusApproved) }
func (h *BookingHandler) Reject(c *gin.Context)   { h.transition(c, booking.StatusRejected) }
func (h *BookingHandler) Complete(c *gin.Context) { h.transition(c, booking.StatusCompleted) }

func (h *BookingHandler) transition(c *gin.Context, to booking.Status) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	b, err := h.booking.Transition(c.Request.Context(), booking.TransitionCommand{
		BookingID: id,
		To:        to,
		ActorID:   actorFor(c),
	})
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, newBookingView(b))
}

// actorFor maps admins to the system actor; everyone else acts as themselves.
func actorFor(c *gin.Context) types.ID {
	if middleware.CallerRole(c) == middleware.RoleAdmin {
		return ""
	}
	return types.ID(middleware.CallerUID(c))
}

func canView(c *gin.Context, b *booking.Booking) bool {
	if middleware.CallerRole(c) == middleware.RoleAdmin {
		return true
	}
	uid := types.ID(middleware.CallerUID(c))
	return uid == b.UserID || uid == b.DriverID
}
