// README: Pricing settings, fee breakdown and fare estimate definitions.
package pricing

import (
	"context"
	"errors"

	"ridebook/internal/types"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidPercentage   = errors.New("invalid percentage")
	ErrBadRequest          = errors.New("bad request")
	ErrDistanceUnavailable = errors.New("distance unavailable")
)

const (
	MinFeePercent types.Percent = 0
	MaxFeePercent types.Percent = 50 * types.BasisPointsPerPercent

	DefaultFeePercent types.Percent = 11 * types.BasisPointsPerPercent
)

// Defaults are used whenever a setting is absent from the ConfigStore.
type Defaults struct {
	FeePercent types.Percent
	PricePerKm types.Money
	Currency   string
}

// DefaultPricePerKmMinor is 50.00 per km.
const DefaultPricePerKmMinor = 5000

func DefaultSettings(currency string) Defaults {
	return Defaults{
		FeePercent: DefaultFeePercent,
		PricePerKm: types.NewMoney(DefaultPricePerKmMinor, currency),
		Currency:   currency,
	}
}

// ConfigStore is the externally mutable settings source. ok=false means the key is unset.
type ConfigStore interface {
	FeePercent(ctx context.Context) (p types.Percent, ok bool, err error)
	SetFeePercent(ctx context.Context, p types.Percent) error
	PricePerKm(ctx context.Context) (m types.Money, ok bool, err error)
	SetPricePerKm(ctx context.Context, m types.Money) error
}

// DistanceProvider resolves the road or great-circle distance between two points.
type DistanceProvider interface {
	DistanceKm(ctx context.Context, from, to types.Point) (float64, error)
}

type FeeBreakdown struct {
	Subtotal    types.Money
	PlatformFee types.Money
	NetAmount   types.Money
	FeePercent  types.Percent
}

type EstimateRequest struct {
	DistanceKm *float64
	From       *types.Point
	To         *types.Point
}

type Estimate struct {
	DistanceKm     float64
	PricePerKm     types.Money
	SuggestedPrice types.Money
}
