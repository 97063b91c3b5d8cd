// README: Common money value object used across modules (int64 minor units, never float).
package types

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

type Money struct {
	Amount   int64
	Currency string
}

func NewMoney(amount int64, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// ParseMoney parses a decimal string such as "12", "12.5" or "12.50" into minor units.
// More than two fractional digits is rejected rather than rounded.
func ParseMoney(s, currency string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("empty amount")
	}
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return Money{}, fmt.Errorf("invalid amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if w > math.MaxInt64/100 {
		return Money{}, fmt.Errorf("amount %q out of range", s)
	}
	f, err := strconv.ParseUint(frac, 10, 8)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	amount := int64(w)*100 + int64(f)
	if neg {
		amount = -amount
	}
	return Money{Amount: amount, Currency: currency}, nil
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}
}

func (m Money) Sub(o Money) Money {
	return Money{Amount: m.Amount - o.Amount, Currency: m.Currency}
}

func (m Money) Mul(n int64) Money {
	return Money{Amount: m.Amount * n, Currency: m.Currency}
}

func (m Money) IsPositive() bool { return m.Amount > 0 }

// String renders the amount with two decimals, e.g. "110.00".
func (m Money) String() string {
	sign := ""
	a := m.Amount
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d", sign, a/100, a%100)
}

// MarshalJSON keeps money as a decimal string on the wire.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

// DivRoundHalfUp returns round-half-up(num / den) for den > 0.
func DivRoundHalfUp(num, den int64) int64 {
	if num < 0 {
		return -DivRoundHalfUp(-num, den)
	}
	return (num + den/2) / den
}

// RatRoundHalfUp rounds a non-negative exact value to the nearest integer, halves up.
// ok is false for negative input or a result outside int64.
func RatRoundHalfUp(r *big.Rat) (int64, bool) {
	if r.Sign() < 0 {
		return 0, false
	}
	num := new(big.Int).Lsh(r.Num(), 1)
	num.Add(num, r.Denom())
	den := new(big.Int).Lsh(r.Denom(), 1)
	q := num.Quo(num, den)
	if !q.IsInt64() {
		return 0, false
	}
	return q.Int64(), true
}
