// README: Fare arithmetic. All money math is integer minor units with a single round-half-up step.
package pricing

import (
	"math"
	"math/big"
	"strconv"

	"ridebook/internal/types"
)

// feeDenominator turns basis points into a fraction of the subtotal.
const feeDenominator = 100 * types.BasisPointsPerPercent

// ComputeSuggestedPrice returns round2(distanceKm * ratePerKm). The product is exact and
// rounded half-up once. The distance is taken at its shortest decimal form, so 12.5 km
// means exactly 12.5.
func ComputeSuggestedPrice(distanceKm float64, ratePerKm types.Money) (types.Money, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return types.Money{}, ErrInvalidAmount
	}
	if ratePerKm.Amount < 0 {
		return types.Money{}, ErrInvalidAmount
	}
	km, ok := new(big.Rat).SetString(strconv.FormatFloat(distanceKm, 'g', -1, 64))
	if !ok {
		return types.Money{}, ErrInvalidAmount
	}
	product := km.Mul(km, new(big.Rat).SetInt64(ratePerKm.Amount))
	amount, ok := types.RatRoundHalfUp(product)
	if !ok {
		return types.Money{}, ErrInvalidAmount
	}
	return types.NewMoney(amount, ratePerKm.Currency), nil
}

// ComputeFeeBreakdown splits subtotal into platform fee and net provider amount.
// platformFee + netAmount == subtotal exactly.
func ComputeFeeBreakdown(subtotal types.Money, feePercent types.Percent) (FeeBreakdown, error) {
	if subtotal.Amount <= 0 {
		return FeeBreakdown{}, ErrInvalidAmount
	}
	if err := ValidateFeePercent(feePercent); err != nil {
		return FeeBreakdown{}, err
	}
	if bp := feePercent.BasisPoints(); bp > 0 && subtotal.Amount > (math.MaxInt64-feeDenominator)/bp {
		return FeeBreakdown{}, ErrInvalidAmount
	}
	fee := types.DivRoundHalfUp(subtotal.Amount*feePercent.BasisPoints(), feeDenominator)
	return FeeBreakdown{
		Subtotal:    subtotal,
		PlatformFee: types.NewMoney(fee, subtotal.Currency),
		NetAmount:   types.NewMoney(subtotal.Amount-fee, subtotal.Currency),
		FeePercent:  feePercent,
	}, nil
}

// TotalPrice is pricePerSeat * seats.
func TotalPrice(pricePerSeat types.Money, seats int) (types.Money, error) {
	if seats < 1 || pricePerSeat.Amount < 0 || pricePerSeat.Amount > math.MaxInt64/int64(seats) {
		return types.Money{}, ErrInvalidAmount
	}
	return pricePerSeat.Mul(int64(seats)), nil
}

func ValidateFeePercent(p types.Percent) error {
	if p < MinFeePercent || p > MaxFeePercent {
		return ErrInvalidPercentage
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
