package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkrasnov/accountd/internal/common"
)

const redisKeyPrefix = "tok:"

// RedisStore backs the ledger with redis. Expiry is delegated to redis
// TTLs, single-use consumption to GETDEL.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) key(value string) string {
	return redisKeyPrefix + value
}

func (s *RedisStore) Put(ctx context.Context, rec *Record) error {
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		// an already-expired record can never be redeemed; storing it
		// would only occupy the key
		return nil
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	ok, err := s.client.SetNX(ctx, s.key(rec.Value), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	if !ok {
		return common.ErrConflict
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, value string, kind Kind) (*Record, error) {
	data, err := s.client.GetDel(ctx, s.key(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, common.ErrTokenInvalid
	}

	if rec.Kind != kind || !s.now().Before(rec.ExpiresAt) {
		return nil, common.ErrTokenInvalid
	}
	return &rec, nil
}
