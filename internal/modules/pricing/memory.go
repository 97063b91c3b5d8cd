package pricing

import (
	"context"
	"sync"

	"ridebook/internal/types"
)

// MemoryStore keeps settings in process; used when no Redis address is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	fee        *types.Percent
	pricePerKm *types.Money
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) FeePercent(context.Context) (types.Percent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fee == nil {
		return 0, false, nil
	}
	return *s.fee, true, nil
}

func (s *MemoryStore) SetFeePercent(_ context.Context, p types.Percent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fee = &p
	return nil
}

func (s *MemoryStore) PricePerKm(context.Context) (types.Money, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.pricePerKm == nil {
		return types.Money{}, false, nil
	}
	return *s.pricePerKm, true, nil
}

func (s *MemoryStore) SetPricePerKm(_ context.Context, m types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pricePerKm = &m
	return nil
}
