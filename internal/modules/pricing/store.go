// README: Pricing settings store backed by a Redis hash.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"ridebook/internal/types"
)

const (
	settingsKey        = "pricing:settings"
	fieldFeeBasisPts   = "fee_basis_points"
	fieldPricePerKm    = "price_per_km"
	fieldPriceCurrency = "price_per_km_currency"
)

type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{redis: client}
}

func (s *RedisStore) FeePercent(ctx context.Context) (types.Percent, bool, error) {
	v, ok, err := s.getInt(ctx, fieldFeeBasisPts)
	if err != nil || !ok {
		return 0, ok, err
	}
	return types.Percent(v), true, nil
}

func (s *RedisStore) SetFeePercent(ctx context.Context, p types.Percent) error {
	return s.redis.HSet(ctx, settingsKey, fieldFeeBasisPts, p.BasisPoints()).Err()
}

func (s *RedisStore) PricePerKm(ctx context.Context) (types.Money, bool, error) {
	vals, err := s.redis.HMGet(ctx, settingsKey, fieldPricePerKm, fieldPriceCurrency).Result()
	if err != nil {
		return types.Money{}, false, err
	}
	raw, _ := vals[0].(string)
	if raw == "" {
		return types.Money{}, false, nil
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return types.Money{}, false, fmt.Errorf("parse %s: %w", fieldPricePerKm, err)
	}
	currency, _ := vals[1].(string)
	return types.NewMoney(amount, currency), true, nil
}

func (s *RedisStore) SetPricePerKm(ctx context.Context, m types.Money) error {
	return s.redis.HSet(ctx, settingsKey, fieldPricePerKm, m.Amount, fieldPriceCurrency, m.Currency).Err()
}

func (s *RedisStore) getInt(ctx context.Context, field string) (int64, bool, error) {
	val, err := s.redis.HGet(ctx, settingsKey, field).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", field, err)
	}
	return n, true, nil
}
