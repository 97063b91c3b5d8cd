// README: Pricing service: settings with defaults, fare estimates.
package pricing

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"ridebook/internal/types"
)

type Service struct {
	store    ConfigStore
	defaults Defaults
	distance DistanceProvider
	log      logrus.FieldLogger
}

func NewService(store ConfigStore, defaults Defaults, distance DistanceProvider, log logrus.FieldLogger) *Service {
	if defaults.PricePerKm.Currency == "" {
		defaults.PricePerKm.Currency = defaults.Currency
	}
	if distance == nil {
		distance = HaversineDistance{}
	}
	return &Service{store: store, defaults: defaults, distance: distance, log: log}
}

// FeePercent never fails: an unset or unreadable setting yields the default.
func (s *Service) FeePercent(ctx context.Context) types.Percent {
	p, ok, err := s.store.FeePercent(ctx)
	if err != nil {
		s.log.WithError(err).Warn("read fee percentage, using default")
		return s.defaults.FeePercent
	}
	if !ok || ValidateFeePercent(p) != nil {
		return s.defaults.FeePercent
	}
	return p
}

func (s *Service) SetFeePercent(ctx context.Context, p types.Percent) error {
	if err := ValidateFeePercent(p); err != nil {
		return err
	}
	if err := s.store.SetFeePercent(ctx, p); err != nil {
		return fmt.Errorf("store fee percentage: %w", err)
	}
	s.log.WithField("fee_percent", p.String()).Info("fee percentage updated")
	return nil
}

func (s *Service) PricePerKm(ctx context.Context) types.Money {
	m, ok, err := s.store.PricePerKm(ctx)
	if err != nil {
		s.log.WithError(err).Warn("read price per km, using default")
		return s.defaults.PricePerKm
	}
	if !ok || m.Amount < 0 {
		return s.defaults.PricePerKm
	}
	if m.Currency == "" {
		m.Currency = s.defaults.Currency
	}
	return m
}

func (s *Service) SetPricePerKm(ctx context.Context, m types.Money) error {
	if m.Amount < 0 {
		return ErrInvalidAmount
	}
	if m.Currency == "" {
		m.Currency = s.defaults.Currency
	}
	if err := s.store.SetPricePerKm(ctx, m); err != nil {
		return fmt.Errorf("store price per km: %w", err)
	}
	return nil
}

// Estimate suggests a ride price from an explicit distance or from two coordinates.
func (s *Service) Estimate(ctx context.Context, req EstimateRequest) (Estimate, error) {
	var km float64
	switch {
	case req.DistanceKm != nil:
		km = *req.DistanceKm
	case req.From != nil && req.To != nil:
		if !validPoint(*req.From) || !validPoint(*req.To) {
			return Estimate{}, ErrBadRequest
		}
		d, err := s.distance.DistanceKm(ctx, *req.From, *req.To)
		if err != nil {
			s.log.WithError(err).Warn("distance lookup failed")
			return Estimate{}, ErrDistanceUnavailable
		}
		km = d
	default:
		return Estimate{}, ErrBadRequest
	}

	rate := s.PricePerKm(ctx)
	price, err := ComputeSuggestedPrice(km, rate)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		DistanceKm:     round2(km),
		PricePerKm:     rate,
		SuggestedPrice: price,
	}, nil
}

// FeeBreakdown computes the split using the current global fee percentage.
func (s *Service) FeeBreakdown(ctx context.Context, subtotal types.Money) (FeeBreakdown, error) {
	return ComputeFeeBreakdown(subtotal, s.FeePercent(ctx))
}
