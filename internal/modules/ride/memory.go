// README: In-memory ride store; each ride row has its own lock.
package ride

import (
	"context"
	"sort"
	"sync"
	"time"

	"ridebook/internal/types"
)

type memRow struct {
	mu   sync.Mutex
	ride *Ride
}

type MemoryStore struct {
	mu   sync.RWMutex
	rows map[types.ID]*memRow
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[types.ID]*memRow), now: time.Now}
}

func (s *MemoryStore) row(id types.ID) (*memRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rows[id]
	return r, ok
}

func (s *MemoryStore) Create(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[r.ID]; exists {
		return ErrBadRequest
	}
	s.rows[r.ID] = &memRow{ride: r.clone()}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	row, ok := s.row(id)
	if !ok {
		return nil, ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	return row.ride.clone(), nil
}

func (s *MemoryStore) GetForUpdate(ctx context.Context, id types.ID) (*Ride, error) {
	return s.Get(ctx, id)
}

func (s *MemoryStore) ListByDriver(_ context.Context, driverID types.ID) ([]*Ride, error) {
	s.mu.RLock()
	rows := make([]*memRow, 0, len(s.rows))
	for _, r := range s.rows {
		rows = append(rows, r)
	}
	s.mu.RUnlock()

	var out []*Ride
	for _, row := range rows {
		row.mu.Lock()
		if row.ride.DriverID == driverID {
			out = append(out, row.ride.clone())
		}
		row.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureAt.Before(out[j].DepartureAt) })
	return out, nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id types.ID, status Status) (*Ride, error) {
	return s.mutate(id, func(r *Ride) error {
		if r.Status != StatusActive && r.Status != StatusFull {
			return ErrNotActive
		}
		r.Status = status
		return nil
	})
}

func (s *MemoryStore) ReserveSeats(_ context.Context, id types.ID, seats int) (*Ride, error) {
	return s.mutate(id, func(r *Ride) error {
		switch r.Status {
		case StatusActive:
		case StatusFull:
			return ErrSeatsUnavailable
		default:
			return ErrNotActive
		}
		if r.AvailableSeats < seats {
			return ErrSeatsUnavailable
		}
		r.AvailableSeats -= seats
		if r.AvailableSeats == 0 {
			r.Status = StatusFull
		}
		return nil
	})
}

func (s *MemoryStore) ReleaseSeats(_ context.Context, id types.ID, seats int) (*Ride, error) {
	return s.mutate(id, func(r *Ride) error {
		if r.AvailableSeats+seats > r.Capacity {
			return ErrCapacityExceeded
		}
		r.AvailableSeats += seats
		if r.Status == StatusFull {
			r.Status = StatusActive
		}
		return nil
	})
}

// mutate applies fn to a copy under the row lock and commits only when fn succeeds.
func (s *MemoryStore) mutate(id types.ID, fn func(r *Ride) error) (*Ride, error) {
	row, ok := s.row(id)
	if !ok {
		return nil, ErrNotFound
	}
	row.mu.Lock()
	defer row.mu.Unlock()

	next := row.ride.clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version++
	next.UpdatedAt = s.now()
	row.ride = next
	return next.clone(), nil
}
