package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ridebook/internal/infra"
	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/billing"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

const (
	testDriver    types.ID = "driver-1"
	testPassenger types.ID = "passenger-1"
)

type fixture struct {
	rides   *ride.Service
	fees    *pricing.Service
	ledger  *billing.Service
	svc     *Service
	bookRep Repository
}

func fixtures(t *testing.T) map[string]fixture {
	t.Helper()
	log := infra.NewDiscardLogger()
	out := map[string]fixture{}

	rideMem := ride.NewMemoryStore()
	bookMem := NewMemoryStore()
	out["memory"] = newFixture(infra.NoopUnitOfWork{}, rideMem, bookMem, billing.NewMemoryStore())

	if db := infra.OptionalTestDB(t); db != nil {
		out["postgres"] = newFixture(infra.NewUnitOfWork(db, 3, log), ride.NewStore(db), NewStore(db), billing.NewStore(db))
	}
	return out
}

func newFixture(uow infra.UnitOfWork, rides ride.Repository, bookings Repository, records billing.Repository) fixture {
	log := infra.NewDiscardLogger()
	fees := pricing.NewService(pricing.NewMemoryStore(), pricing.DefaultSettings("MZN"), nil, log)
	ledger := billing.NewService(records, log)
	return fixture{
		rides:  ride.NewService(rides),
		fees:   fees,
		ledger: ledger,
		svc: NewService(Deps{
			UnitOfWork: uow,
			Store:      bookings,
			Seats:      availability.NewService(rides, log),
			Fees:       fees,
			Ledger:     ledger,
			Log:        log,
		}),
		bookRep: bookings,
	}
}

func (f fixture) ride(t *testing.T, capacity int) *ride.Ride {
	t.Helper()
	r, err := f.rides.Create(context.Background(), ride.CreateCommand{
		DriverID:     testDriver,
		Origin:       "Maputo",
		Destination:  "Xai-Xai",
		DepartureAt:  time.Now().Add(2 * time.Hour),
		PricePerSeat: types.NewMoney(11000, "MZN"),
		Capacity:     capacity,
	})
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r
}

func (f fixture) book(t *testing.T, rideID types.ID, seats int) *Booking {
	t.Helper()
	b, err := f.svc.Create(context.Background(), CreateCommand{RideID: rideID, UserID: testPassenger, Seats: seats})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}

func (f fixture) available(t *testing.T, rideID types.ID) int {
	t.Helper()
	r, err := f.rides.Get(context.Background(), rideID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	return r.AvailableSeats
}

// checkHeldSeats verifies capacity - available equals the seats of bookings that still hold them.
func (f fixture) checkHeldSeats(t *testing.T, rideID types.ID) {
	t.Helper()
	ctx := context.Background()
	r, err := f.rides.Get(ctx, rideID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	list, err := f.svc.ListByRide(ctx, rideID)
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	held := 0
	for _, b := range list {
		if b.Status.HoldsSeats() {
			held += b.Seats
		}
	}
	if r.SeatsHeld() != held {
		t.Fatalf("ride holds %d seats, bookings hold %d", r.SeatsHeld(), held)
	}
}

func TestCreateBooking(t *testing.T) {
	for name, f := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			r := f.ride(t, 4)
			b := f.book(t, r.ID, 3)

			if b.Status != StatusPending {
				t.Fatalf("status = %s, want pending", b.Status)
			}
			if b.TotalPrice.Amount != 33000 || b.TotalPrice.Currency != "MZN" {
				t.Fatalf("total = %s %s, want 330.00 MZN", b.TotalPrice, b.TotalPrice.Currency)
			}
			if b.DriverID != testDriver {
				t.Fatalf("driver = %s, want %s", b.DriverID, testDriver)
			}
			if got := f.available(t, r.ID); got != 1 {
				t.Fatalf("available = %d, want 1", got)
			}
			stored, err := f.svc.Get(context.Background(), b.ID)
			if err != nil {
				t.Fatalf("get booking: %v", err)
			}
			if stored.Seats != 3 || stored.Status != StatusPending {
				t.Fatalf("stored booking %+v", stored)
			}
			f.checkHeldSeats(t, r.ID)
		})
	}
}

func TestCreateBookingFillsRideThenRefusesMore(t *testing.T) {
	for name, f := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := f.ride(t, 2)
			f.book(t, r.ID, 2)

			got, _ := f.rides.Get(ctx, r.ID)
			if got.AvailableSeats != 0 || got.Status != ride.StatusFull {
				t.Fatalf("available=%d status=%s, want 0/full", got.AvailableSeats, got.Status)
			}
			_, err := f.svc.Create(ctx, CreateCommand{RideID: r.ID, UserID: "passenger-2", Seats: 1})
			if !errors.Is(err, availability.ErrSeatsUnavailable) {
				t.Fatalf("expected ErrSeatsUnavailable, got %v", err)
			}
			list, _ := f.svc.ListByRide(ctx, r.ID)
			if len(list) != 1 {
				t.Fatalf("bookings = %d, want 1", len(list))
			}
		})
	}
}

func TestCreateBookingValidation(t *testing.T) {
	f := fixtures(t)["memory"]
	r := f.ride(t, 2)
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CreateCommand
		want error
	}{
		{"zero seats", CreateCommand{RideID: r.ID, UserID: testPassenger, Seats: 0}, availability.ErrInvalidQuantity},
		{"negative seats", CreateCommand{RideID: r.ID, UserID: testPassenger, Seats: -1}, availability.ErrInvalidQuantity},
		{"missing user", CreateCommand{RideID: r.ID, Seats: 1}, ErrBadRequest},
		{"missing ride", CreateCommand{UserID: testPassenger, Seats: 1}, ErrBadRequest},
		{"unknown ride", CreateCommand{RideID: "nope", UserID: testPassenger, Seats: 1}, availability.ErrRideNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if got := f.available(t, r.ID); got != 2 {
		t.Fatalf("available = %d after rejected requests, want 2", got)
	}
}

func TestCreateBookingInactiveRide(t *testing.T) {
	f := fixtures(t)["memory"]
	r := f.ride(t, 2)
	if _, err := f.rides.Cancel(context.Background(), r.ID); err != nil {
		t.Fatalf("cancel ride: %v", err)
	}
	_, err := f.svc.Create(context.Background(), CreateCommand{RideID: r.ID, UserID: testPassenger, Seats: 1})
	if !errors.Is(err, availability.ErrRideNotActive) {
		t.Fatalf("expected ErrRideNotActive, got %v", err)
	}
}

type failingBookings struct {
	*MemoryStore
}

func (failingBookings) Create(context.Context, *Booking) error {
	return errors.New("insert failed")
}

func TestCreateBookingReleasesSeatsWhenPersistFails(t *testing.T) {
	rides := ride.NewMemoryStore()
	f := newFixture(infra.NoopUnitOfWork{}, rides, failingBookings{NewMemoryStore()}, billing.NewMemoryStore())
	r := f.ride(t, 3)

	if _, err := f.svc.Create(context.Background(), CreateCommand{RideID: r.ID, UserID: testPassenger, Seats: 2}); err == nil {
		t.Fatal("expected create to fail")
	}
	if got := f.available(t, r.ID); got != 3 {
		t.Fatalf("available = %d, want 3 after compensation", got)
	}
}

func TestRejectReleasesSeats(t *testing.T) {
	for name, f := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := f.ride(t, 5)
			b := f.book(t, r.ID, 3)
			if got := f.available(t, r.ID); got != 2 {
				t.Fatalf("available = %d, want 2", got)
			}

			rejected, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusRejected, ActorID: testDriver})
			if err != nil {
				t.Fatalf("reject: %v", err)
			}
			if rejected.Status != StatusRejected {
				t.Fatalf("status = %s, want rejected", rejected.Status)
			}
			if got := f.available(t, r.ID); got != 5 {
				t.Fatalf("available = %d, want 5", got)
			}
			if _, err := f.ledger.GetByBooking(ctx, b.ID); !errors.Is(err, billing.ErrNotFound) {
				t.Fatalf("expected no billing record, got %v", err)
			}
			f.checkHeldSeats(t, r.ID)
		})
	}
}

func TestCompleteRecordsFeeAndKeepsSeats(t *testing.T) {
	for name, f := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := f.ride(t, 4)
			b := f.book(t, r.ID, 2)

			if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusApproved, ActorID: testDriver}); err != nil {
				t.Fatalf("approve: %v", err)
			}
			done, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusCompleted, ActorID: testDriver})
			if err != nil {
				t.Fatalf("complete: %v", err)
			}
			if done.Status != StatusCompleted {
				t.Fatalf("status = %s, want completed", done.Status)
			}

			rec, err := f.ledger.GetByBooking(ctx, b.ID)
			if err != nil {
				t.Fatalf("billing record: %v", err)
			}
			if rec.PaymentStatus != billing.PaymentPending {
				t.Fatalf("payment status = %s, want pending", rec.PaymentStatus)
			}
			if rec.ProviderID != testDriver || rec.Subtotal.Amount != 22000 {
				t.Fatalf("unexpected record %+v", rec)
			}
			if rec.PlatformFee.Amount != 2420 || rec.NetAmount.Amount != 19580 {
				t.Fatalf("fee=%s net=%s, want 24.20/195.80", rec.PlatformFee, rec.NetAmount)
			}

			first, err := f.ledger.MarkPaid(ctx, rec.ID, "cash")
			if err != nil {
				t.Fatalf("mark paid: %v", err)
			}
			second, err := f.ledger.MarkPaid(ctx, rec.ID, "card")
			if err != nil {
				t.Fatalf("mark paid again: %v", err)
			}
			if second.PaymentMethod != "cash" || !second.PaidAt.Equal(*first.PaidAt) {
				t.Fatalf("second mark paid changed the record: %+v", second)
			}

			// completed bookings keep their seats
			if got := f.available(t, r.ID); got != 2 {
				t.Fatalf("available = %d, want 2", got)
			}
			f.checkHeldSeats(t, r.ID)
		})
	}
}

func TestCompleteFreezesFeeAtCompletion(t *testing.T) {
	f := fixtures(t)["memory"]
	ctx := context.Background()
	r := f.ride(t, 2)
	b := f.book(t, r.ID, 1)

	if err := f.fees.SetFeePercent(ctx, types.WholePercent(20)); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusApproved}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := f.fees.SetFeePercent(ctx, types.WholePercent(5)); err != nil {
		t.Fatalf("set fee: %v", err)
	}

	rec, err := f.ledger.GetByBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("billing record: %v", err)
	}
	if rec.FeePercent != types.WholePercent(20) || rec.PlatformFee.Amount != 2200 {
		t.Fatalf("fee percent=%s fee=%s, want 20%%/22.00", rec.FeePercent, rec.PlatformFee)
	}
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusApproved, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusNone, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
	for _, s := range []Status{StatusRejected, StatusCompleted, StatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	f := fixtures(t)["memory"]
	ctx := context.Background()
	r := f.ride(t, 3)
	b := f.book(t, r.ID, 1)

	if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusCompleted, ActorID: testDriver}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending -> completed: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: "teleported"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("unknown status: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusApproved}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("rejected -> approved: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: "missing", To: StatusApproved}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing booking: expected ErrNotFound, got %v", err)
	}

	if got := f.available(t, r.ID); got != 3 {
		t.Fatalf("available = %d, want 3", got)
	}
	mem := f.bookRep.(*MemoryStore)
	if events := mem.Events(b.ID); len(events) != 2 {
		t.Fatalf("events = %d, want 2 (create + reject)", len(events))
	}
}

func TestTransitionActorChecks(t *testing.T) {
	f := fixtures(t)["memory"]
	ctx := context.Background()
	r := f.ride(t, 3)
	b := f.book(t, r.ID, 1)

	if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusApproved, ActorID: testPassenger}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("passenger approve: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, b.ID, "stranger"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger cancel: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, b.ID, testPassenger); err != nil {
		t.Fatalf("passenger cancel: %v", err)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	for name, f := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := f.ride(t, 4)
			b := f.book(t, r.ID, 2)

			for i := 0; i < 2; i++ {
				got, err := f.svc.Cancel(ctx, b.ID, testPassenger)
				if err != nil {
					t.Fatalf("cancel #%d: %v", i+1, err)
				}
				if got.Status != StatusCancelled {
					t.Fatalf("cancel #%d status = %s", i+1, got.Status)
				}
			}
			if got := f.available(t, r.ID); got != 4 {
				t.Fatalf("available = %d, want 4 (released once)", got)
			}
			if _, err := f.svc.Cancel(ctx, b.ID, "stranger"); !errors.Is(err, ErrForbidden) {
				t.Fatalf("stranger repeating cancel: expected ErrForbidden, got %v", err)
			}
			f.checkHeldSeats(t, r.ID)
		})
	}
}

func TestRepeatedTransitionChecksActor(t *testing.T) {
	f := fixtures(t)["memory"]
	ctx := context.Background()
	r := f.ride(t, 2)
	b := f.book(t, r.ID, 1)
	if _, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusApproved, ActorID: testDriver}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	cases := []struct {
		name  string
		actor types.ID
		want  error
	}{
		{"driver", testDriver, nil},
		{"system", "", nil},
		{"passenger", testPassenger, ErrForbidden},
		{"stranger", "stranger", ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.svc.Transition(ctx, TransitionCommand{BookingID: b.ID, To: StatusApproved, ActorID: tc.actor})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if tc.want == nil && got.Status != StatusApproved {
				t.Fatalf("status = %s, want approved", got.Status)
			}
			if tc.want != nil && got != nil {
				t.Fatalf("forbidden caller received booking %+v", got)
			}
		})
	}
}

func TestConcurrentCancelReleasesOnce(t *testing.T) {
	for name, f := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := f.ride(t, 6)
			b := f.book(t, r.ID, 2)
			// another booking keeps the ride below capacity so a double release would be visible
			f.book(t, r.ID, 1)

			const workers = 8
			var wg sync.WaitGroup
			start := make(chan struct{})
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if _, err := f.svc.Cancel(ctx, b.ID, testPassenger); err != nil && !errors.Is(err, ErrConflict) {
						errs <- err
					}
				}()
			}
			close(start)
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Fatalf("cancel: %v", err)
			}

			if got := f.available(t, r.ID); got != 5 {
				t.Fatalf("available = %d, want 5", got)
			}
			f.checkHeldSeats(t, r.ID)
		})
	}
}

func TestConcurrentBookingsNeverOversell(t *testing.T) {
	for name, f := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			r := f.ride(t, 3)

			const workers = 10
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				success int
			)
			start := make(chan struct{})
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := f.svc.Create(ctx, CreateCommand{RideID: r.ID, UserID: testPassenger, Seats: 1})
					if err == nil {
						mu.Lock()
						success++
						mu.Unlock()
						return
					}
					if !errors.Is(err, availability.ErrSeatsUnavailable) {
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if success != 3 {
				t.Fatalf("successful bookings = %d, want 3", success)
			}
			if got := f.available(t, r.ID); got != 0 {
				t.Fatalf("available = %d, want 0", got)
			}
			f.checkHeldSeats(t, r.ID)
		})
	}
}
