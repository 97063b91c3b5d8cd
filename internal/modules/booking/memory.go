package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridebook/internal/types"
)

type MemoryStore struct {
	mu       sync.Mutex
	bookings map[types.ID]*Booking
	events   []Event
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[types.ID]*Booking), now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bookings[b.ID]; exists {
		return ErrConflict
	}
	s.bookings[b.ID] = b.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != from || b.StatusVersion != version {
		return false, nil
	}
	b.Status = to
	b.StatusVersion++
	b.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := *e
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryStore) ListByRide(_ context.Context, rideID types.ID) ([]*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Booking
	for _, b := range s.bookings {
		if b.RideID == rideID {
			out = append(out, b.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Events returns the recorded transitions for a booking, oldest first.
func (s *MemoryStore) Events(bookingID types.ID) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out
}
