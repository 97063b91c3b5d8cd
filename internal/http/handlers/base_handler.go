// README: Base handler utilities (JSON helpers, error mapping to stable codes).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridebook/internal/http/middleware"
	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/billing"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

const (
	CodeInvalidQuantity     = "invalid_quantity"
	CodeInvalidAmount       = "invalid_amount"
	CodeInvalidPercentage   = "invalid_percentage"
	CodeSeatsUnavailable    = "seats_unavailable"
	CodeRideNotFound        = "ride_not_found"
	CodeRideNotActive       = "ride_not_active"
	CodeBookingNotFound     = "booking_not_found"
	CodeBillingNotFound     = "billing_not_found"
	CodeInvalidTransition   = "invalid_transition"
	CodeConflict            = "conflict"
	CodeDistanceUnavailable = "distance_unavailable"
	CodeForbidden           = "forbidden"
	CodeBadRequest          = "bad_request"
	CodeInternal            = "internal_error"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters only for errors that wrap more than one sentinel.
var errorTable = []errorMapping{
	{availability.ErrInvalidQuantity, http.StatusBadRequest, CodeInvalidQuantity},
	{availability.ErrSeatsUnavailable, http.StatusBadRequest, CodeSeatsUnavailable},
	{ride.ErrNotActive, http.StatusBadRequest, CodeRideNotActive},
	{ride.ErrNotFound, http.StatusNotFound, CodeRideNotFound},
	{booking.ErrNotFound, http.StatusNotFound, CodeBookingNotFound},
	{billing.ErrNotFound, http.StatusNotFound, CodeBillingNotFound},
	{booking.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition},
	{booking.ErrConflict, http.StatusConflict, CodeConflict},
	{booking.ErrForbidden, http.StatusForbidden, CodeForbidden},
	{pricing.ErrInvalidAmount, http.StatusBadRequest, CodeInvalidAmount},
	{pricing.ErrInvalidPercentage, http.StatusBadRequest, CodeInvalidPercentage},
	{pricing.ErrDistanceUnavailable, http.StatusBadGateway, CodeDistanceUnavailable},
	{pricing.ErrBadRequest, http.StatusBadRequest, CodeBadRequest},
	{ride.ErrBadRequest, http.StatusBadRequest, CodeBadRequest},
	{booking.ErrBadRequest, http.StatusBadRequest, CodeBadRequest},
	{billing.ErrBadRequest, http.StatusBadRequest, CodeBadRequest},
}

// MapError returns the HTTP status and stable code for err. Unknown errors become internal_error.
func MapError(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, CodeInternal
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, code string) {
	writeJSON(c, status, errorResponse{Error: code})
}

func writeDomainError(c *gin.Context, log logrus.FieldLogger, err error) {
	status, code := MapError(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.RequestID(c),
			"path":       c.FullPath(),
		}).Error("request error")
	}
	writeError(c, status, code)
}

// pathID reads and validates a uuid path parameter.
func pathID(c *gin.Context, name string) (types.ID, bool) {
	id := types.ID(c.Param(name))
	if !id.Valid() {
		writeError(c, http.StatusBadRequest, CodeBadRequest)
		return "", false
	}
	return id, true
}
