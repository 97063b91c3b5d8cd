// README: End-to-end API tests over the in-memory stack.
package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	httptransport "ridebook/internal/http"
	"ridebook/internal/infra"
	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/billing"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
)

// tokenVerifier accepts tokens of the form "uid" or "uid:role".
type tokenVerifier struct{}

func (tokenVerifier) VerifyIDToken(_ context.Context, raw string) (*infra.Caller, error) {
	if raw == "bad" {
		return nil, errors.New("invalid token")
	}
	uid, role, _ := strings.Cut(raw, ":")
	return &infra.Caller{UID: uid, Role: role}, nil
}

const (
	driverToken    = "driver-1:driver"
	passengerToken = "passenger-1"
	adminToken     = "root:admin"
)

func newAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := infra.NewDiscardLogger()

	rideStore := ride.NewMemoryStore()
	rides := ride.NewService(rideStore)
	fees := pricing.NewService(pricing.NewMemoryStore(), pricing.DefaultSettings("MZN"), nil, log)
	ledger := billing.NewService(billing.NewMemoryStore(), log)
	bookings := booking.NewService(booking.Deps{
		UnitOfWork: infra.NoopUnitOfWork{},
		Store:      booking.NewMemoryStore(),
		Seats:      availability.NewService(rideStore, log),
		Fees:       fees,
		Ledger:     ledger,
		Log:        log,
	})
	return httptransport.NewRouter(httptransport.RouterDeps{
		Rides:    rides,
		Bookings: bookings,
		Pricing:  fees,
		Billing:  ledger,
		Verifier: tokenVerifier{},
		Currency: "MZN",
		Log:      log,
	})
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	out := map[string]any{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func expect(t *testing.T, w *httptest.ResponseRecorder, body map[string]any, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, w.Code, w.Body.String())
	}
	if code != "" && body["error"] != code {
		t.Fatalf("expected error %q, got %v", code, body["error"])
	}
}

func publishRide(t *testing.T, r http.Handler, capacity int) string {
	t.Helper()
	w, body := do(t, r, http.MethodPost, "/api/rides", driverToken, map[string]any{
		"origin":         "Maputo",
		"destination":    "Matola",
		"departure_at":   time.Now().Add(3 * time.Hour).UTC().Format(time.RFC3339),
		"price_per_seat": "110.00",
		"capacity":       capacity,
	})
	expect(t, w, body, http.StatusCreated, "")
	return body["ride_id"].(string)
}

func TestHealth(t *testing.T) {
	w, _ := do(t, newAPI(t), http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("health: %d %q", w.Code, w.Body.String())
	}
}

func TestAPIRequiresAuth(t *testing.T) {
	r := newAPI(t)
	w, body := do(t, r, http.MethodGet, "/api/pricing/fee-percentage", "", nil)
	expect(t, w, body, http.StatusUnauthorized, "unauthorized")
	w, body = do(t, r, http.MethodGet, "/api/pricing/fee-percentage", "bad", nil)
	expect(t, w, body, http.StatusUnauthorized, "unauthorized")
}

func TestBookingFlow(t *testing.T) {
	r := newAPI(t)
	rideID := publishRide(t, r, 2)

	w, body := do(t, r, http.MethodPost, "/api/bookings", passengerToken, map[string]any{"ride_id": rideID, "seats_requested": 2})
	expect(t, w, body, http.StatusCreated, "")
	if body["status"] != "pending" || body["total_price"] != "220.00" || body["seats_booked"] != float64(2) {
		t.Fatalf("unexpected booking response %v", body)
	}
	bookingID := body["booking_id"].(string)

	w, body = do(t, r, http.MethodGet, "/api/rides/"+rideID, passengerToken, nil)
	expect(t, w, body, http.StatusOK, "")
	if body["available_seats"] != float64(0) || body["status"] != "full" || body["price_per_seat"] != "110.00" {
		t.Fatalf("unexpected ride %v", body)
	}

	w, body = do(t, r, http.MethodPost, "/api/bookings", "passenger-2", map[string]any{"ride_id": rideID, "seats_requested": 1})
	expect(t, w, body, http.StatusBadRequest, "seats_unavailable")

	w, body = do(t, r, http.MethodPost, "/api/bookings/"+bookingID+"/approve", passengerToken, nil)
	expect(t, w, body, http.StatusForbidden, "forbidden")

	w, body = do(t, r, http.MethodPost, "/api/bookings/"+bookingID+"/complete", driverToken, nil)
	expect(t, w, body, http.StatusConflict, "invalid_transition")

	w, body = do(t, r, http.MethodPost, "/api/bookings/"+bookingID+"/approve", driverToken, nil)
	expect(t, w, body, http.StatusOK, "")
	w, body = do(t, r, http.MethodPost, "/api/bookings/"+bookingID+"/complete", driverToken, nil)
	expect(t, w, body, http.StatusOK, "")
	if body["status"] != "completed" {
		t.Fatalf("status = %v, want completed", body["status"])
	}

	w, body = do(t, r, http.MethodGet, "/api/billing/pending", driverToken, nil)
	expect(t, w, body, http.StatusOK, "")
	records := body["records"].([]any)
	if len(records) != 1 {
		t.Fatalf("pending records = %d, want 1", len(records))
	}
	rec := records[0].(map[string]any)
	if rec["subtotal"] != "220.00" || rec["platform_fee"] != "24.20" || rec["net_amount"] != "195.80" {
		t.Fatalf("unexpected record %v", rec)
	}
	billingID := rec["billing_id"].(string)

	w, body = do(t, r, http.MethodPost, "/api/billing/"+billingID+"/pay", driverToken, map[string]any{"payment_method": "cash"})
	expect(t, w, body, http.StatusForbidden, "forbidden")
	for i := 0; i < 2; i++ {
		w, body = do(t, r, http.MethodPost, "/api/billing/"+billingID+"/pay", adminToken, map[string]any{"payment_method": "mpesa"})
		expect(t, w, body, http.StatusOK, "")
		if body["payment_status"] != "completed" || body["payment_method"] != "mpesa" {
			t.Fatalf("pay #%d: unexpected record %v", i+1, body)
		}
	}
	w, body = do(t, r, http.MethodGet, "/api/billing/pending", driverToken, nil)
	expect(t, w, body, http.StatusOK, "")
	if len(body["records"].([]any)) != 0 {
		t.Fatalf("expected no pending records after payment")
	}
}

func TestCancelReleasesSeats(t *testing.T) {
	r := newAPI(t)
	rideID := publishRide(t, r, 3)

	_, body := do(t, r, http.MethodPost, "/api/bookings", passengerToken, map[string]any{"ride_id": rideID, "seats_requested": 3})
	bookingID := body["booking_id"].(string)

	w, body := do(t, r, http.MethodPost, "/api/bookings/"+bookingID+"/cancel", "someone-else", nil)
	expect(t, w, body, http.StatusForbidden, "forbidden")

	for i := 0; i < 2; i++ {
		w, body = do(t, r, http.MethodPost, "/api/bookings/"+bookingID+"/cancel", passengerToken, nil)
		expect(t, w, body, http.StatusOK, "")
		if body["status"] != "cancelled" {
			t.Fatalf("status = %v", body["status"])
		}
	}
	w, body = do(t, r, http.MethodPost, "/api/bookings/"+bookingID+"/cancel", "someone-else", nil)
	expect(t, w, body, http.StatusForbidden, "forbidden")
	if _, leaked := body["booking_id"]; leaked {
		t.Fatalf("forbidden cancel returned the booking: %v", body)
	}

	_, body = do(t, r, http.MethodGet, "/api/rides/"+rideID, passengerToken, nil)
	if body["available_seats"] != float64(3) || body["status"] != "active" {
		t.Fatalf("unexpected ride after cancel %v", body)
	}

	w, body = do(t, r, http.MethodGet, "/api/rides/"+rideID+"/bookings", driverToken, nil)
	expect(t, w, body, http.StatusOK, "")
	if len(body["bookings"].([]any)) != 1 {
		t.Fatalf("expected one booking on ride")
	}
}

func TestBookingErrors(t *testing.T) {
	r := newAPI(t)
	rideID := publishRide(t, r, 2)
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"zero seats", http.MethodPost, "/api/bookings", map[string]any{"ride_id": rideID, "seats_requested": 0}, http.StatusBadRequest, "invalid_quantity"},
		{"unknown ride", http.MethodPost, "/api/bookings", map[string]any{"ride_id": uuid.NewString(), "seats_requested": 1}, http.StatusNotFound, "ride_not_found"},
		{"bad ride id", http.MethodPost, "/api/bookings", map[string]any{"ride_id": "x", "seats_requested": 1}, http.StatusBadRequest, "bad_request"},
		{"malformed json", http.MethodPost, "/api/bookings", "not-an-object", http.StatusBadRequest, "bad_request"},
		{"unknown booking", http.MethodGet, "/api/bookings/" + uuid.NewString(), nil, http.StatusNotFound, "booking_not_found"},
		{"unknown billing", http.MethodPost, "/api/billing/" + uuid.NewString() + "/pay", map[string]any{"payment_method": "cash"}, http.StatusNotFound, "billing_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token := passengerToken
			if strings.HasPrefix(tc.path, "/api/billing") {
				token = adminToken
			}
			w, body := do(t, r, tc.method, tc.path, token, tc.body)
			expect(t, w, body, tc.status, tc.code)
		})
	}
}

func TestCreateRideRejectsFreeSeats(t *testing.T) {
	r := newAPI(t)
	for _, price := range []string{"0", "0.00"} {
		w, body := do(t, r, http.MethodPost, "/api/rides", driverToken, map[string]any{
			"origin":         "Maputo",
			"destination":    "Matola",
			"departure_at":   time.Now().Add(3 * time.Hour).UTC().Format(time.RFC3339),
			"price_per_seat": price,
			"capacity":       2,
		})
		expect(t, w, body, http.StatusBadRequest, "bad_request")
	}
}

func TestRideNotActive(t *testing.T) {
	r := newAPI(t)
	rideID := publishRide(t, r, 2)
	w, body := do(t, r, http.MethodPost, "/api/rides/"+rideID+"/cancel", "driver-2:driver", nil)
	expect(t, w, body, http.StatusForbidden, "forbidden")
	w, body = do(t, r, http.MethodPost, "/api/rides/"+rideID+"/cancel", driverToken, nil)
	expect(t, w, body, http.StatusOK, "")

	w, body = do(t, r, http.MethodPost, "/api/bookings", passengerToken, map[string]any{"ride_id": rideID, "seats_requested": 1})
	expect(t, w, body, http.StatusBadRequest, "ride_not_active")
}

func TestPricingEndpoints(t *testing.T) {
	r := newAPI(t)

	w, body := do(t, r, http.MethodGet, "/api/pricing/fee-percentage", passengerToken, nil)
	expect(t, w, body, http.StatusOK, "")
	if body["percentage"] != float64(11) {
		t.Fatalf("default fee = %v, want 11", body["percentage"])
	}

	w, body = do(t, r, http.MethodPut, "/api/pricing/fee-percentage", passengerToken, map[string]any{"percentage": 12})
	expect(t, w, body, http.StatusForbidden, "forbidden")
	for _, bad := range []any{51, -1, "ten", 12.345} {
		w, body = do(t, r, http.MethodPut, "/api/pricing/fee-percentage", adminToken, map[string]any{"percentage": bad})
		expect(t, w, body, http.StatusBadRequest, "invalid_percentage")
	}
	w, body = do(t, r, http.MethodPut, "/api/pricing/fee-percentage", adminToken, map[string]any{"percentage": 12.5})
	expect(t, w, body, http.StatusOK, "")
	_, body = do(t, r, http.MethodGet, "/api/pricing/fee-percentage", passengerToken, nil)
	if body["percentage"] != 12.5 {
		t.Fatalf("fee = %v, want 12.5", body["percentage"])
	}

	w, body = do(t, r, http.MethodPost, "/api/pricing/estimate", passengerToken, map[string]any{"distance_km": 10})
	expect(t, w, body, http.StatusOK, "")
	if body["suggested_price"] != "500.00" || body["price_per_km"] != "50.00" || body["distance"] != float64(10) {
		t.Fatalf("unexpected estimate %v", body)
	}
	w, body = do(t, r, http.MethodPost, "/api/pricing/estimate", passengerToken, map[string]any{"distance_km": -1})
	expect(t, w, body, http.StatusBadRequest, "invalid_amount")
	w, body = do(t, r, http.MethodPost, "/api/pricing/estimate", passengerToken, map[string]any{})
	expect(t, w, body, http.StatusBadRequest, "bad_request")

	w, body = do(t, r, http.MethodPut, "/api/pricing/price-per-km", adminToken, map[string]any{"price_per_km": "abc"})
	expect(t, w, body, http.StatusBadRequest, "invalid_amount")
	w, body = do(t, r, http.MethodPut, "/api/pricing/price-per-km", adminToken, map[string]any{"price_per_km": "40.00"})
	expect(t, w, body, http.StatusOK, "")
	_, body = do(t, r, http.MethodPost, "/api/pricing/estimate", passengerToken, map[string]any{"distance_km": 2.5})
	if body["suggested_price"] != "100.00" {
		t.Fatalf("suggested = %v, want 100.00", body["suggested_price"])
	}
}
