package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridebook/internal/types"
)

type MemoryStore struct {
	mu        sync.Mutex
	records   map[types.ID]*Record
	byBooking map[types.ID]types.ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:   make(map[types.ID]*Record),
		byBooking: make(map[types.ID]types.ID),
	}
}

func (s *MemoryStore) Create(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byBooking[r.BookingID]; exists {
		return errDuplicate
	}
	s.records[r.ID] = r.clone()
	s.byBooking[r.BookingID] = r.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.clone(), nil
}

func (s *MemoryStore) GetByBooking(ctx context.Context, bookingID types.ID) (*Record, error) {
	s.mu.Lock()
	id, ok := s.byBooking[bookingID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *MemoryStore) MarkPaid(_ context.Context, id types.ID, method string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok || r.PaymentStatus != PaymentPending {
		return false, nil
	}
	r.PaymentStatus = PaymentCompleted
	r.PaymentMethod = method
	paidAt := at
	r.PaidAt = &paidAt
	return true, nil
}

func (s *MemoryStore) ListPendingByProvider(_ context.Context, providerID types.ID) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Record
	for _, r := range s.records {
		if r.ProviderID == providerID && r.PaymentStatus == PaymentPending {
			out = append(out, r.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
