package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dealership-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions under call_active_<id> and call_history_<id>.
// History is a capped list of JSON turns.
type RedisStore struct {
	rdb  redis.UniversalClient
	opts Options
}

func NewRedisStore(rdb redis.UniversalClient, opts Options) *RedisStore {
	return &RedisStore{rdb: rdb, opts: opts.withDefaults()}
}

func (s *RedisStore) Start(ctx context.Context, callID string) error {
	id, err := normalizeID(callID)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, activeKey(id), "1", s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("session: start %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Active(ctx context.Context, callID string) (bool, error) {
	id, err := normalizeID(callID)
	if err != nil {
		return false, err
	}
	n, err := s.rdb.Exists(ctx, activeKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("session: active %s: %w", id, err)
	}
	return n == 1, nil
}

func (s *RedisStore) Append(ctx context.Context, callID string, turns ...Turn) error {
	id, err := normalizeID(callID)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	values := make([]string, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		values = append(values, string(b))
	}
	if _, err := utils.AppendCapped(ctx, s.rdb, historyKey(id), s.opts.MaxTurns, s.opts.TTL, values...); err != nil {
		return fmt.Errorf("session: append %s: %w", id, err)
	}
	// Turns keep the call alive.
	if err := s.rdb.Set(ctx, activeKey(id), "1", s.opts.TTL).Err(); err != nil {
		return fmt.Errorf("session: refresh %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, callID string) ([]Turn, error) {
	id, err := normalizeID(callID)
	if err != nil {
		return nil, err
	}
	raw, err := s.rdb.LRange(ctx, historyKey(id), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: history %s: %w", id, err)
	}
	out := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *RedisStore) End(ctx context.Context, callID string) error {
	id, err := normalizeID(callID)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, activeKey(id), historyKey(id)).Err(); err != nil {
		return fmt.Errorf("session: end %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
