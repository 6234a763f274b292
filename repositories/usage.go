package repositories

import (
	"context"
	stderrors "errors"
	"sodeclick-chat/domain"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	usagePrefix = "usage:"
	// Counters outlive their day so that late reads around midnight still work.
	usageTTL = 48 * time.Hour
)

// UsageRepository counts messages per user, address class and UTC day.
// Keys look like "usage:private:u17:20260115".
type UsageRepository struct {
	rdb *redis.Client
}

func NewUsageRepository(rdb *redis.Client) UsageRepository {
	return UsageRepository{rdb: rdb}
}

func usageKey(userID string, class domain.AddressKind, day time.Time) string {
	return usagePrefix + class.String() + ":" + userID + ":" + day.UTC().Format("20060102")
}

func (u UsageRepository) Count(ctx context.Context, userID string, class domain.AddressKind, day time.Time) (int, error) {
	n, err := u.rdb.Get(ctx, usageKey(userID, class, day)).Int()
	if stderrors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (u UsageRepository) Increment(ctx context.Context, userID string, class domain.AddressKind, day time.Time) error {
	key := usageKey(userID, class, day)
	pipe := u.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, usageTTL)
	_, err := pipe.Exec(ctx)
	return err
}
