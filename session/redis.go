package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces session keys in Redis.
const DefaultPrefix = "gs:"

// deleteSessionScript removes the session blob and its entry in the owning
// user's index in one round trip.
const deleteSessionScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
redis.call("DEL", KEYS[1])
local ok, decoded = pcall(cjson.decode, data)
if ok and decoded["user_id"] then
  redis.call("SREM", ARGV[1] .. decoded["user_id"], ARGV[2])
end
return 1
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// RedisStore keeps sessions as JSON strings with a native Redis TTL. Each
// user also has a set of live session IDs so all of a user's sessions can be
// revoked together.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore. An empty prefix means [DefaultPrefix].
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + "s:" + id
}

func (s *RedisStore) userPrefix() string {
	return s.prefix + "u:"
}

func (s *RedisStore) userKey(userID string) string {
	return s.userPrefix() + userID
}

func (s *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if st.ID != id {
		return nil, ErrNotFound
	}
	if st.Expired(time.Now()) {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (s *RedisStore) Set(ctx context.Context, state *State, ttl time.Duration) error {
	if state == nil || state.ID == "" {
		return errors.New("session id required")
	}
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	st := *state
	if st.ExpiresAt.IsZero() {
		st.ExpiresAt = time.Now().Add(ttl)
	}
	data, err := json.Marshal(&st)
	if err != nil {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(st.ID), data, ttl)
		if st.UserID != "" {
			pipe.SAdd(ctx, s.userKey(st.UserID), st.ID)
			pipe.Expire(ctx, s.userKey(st.UserID), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the session. Deleting an unknown ID is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(id)}, s.userPrefix(), id).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// DeleteAllForUser revokes every live session of userID and returns how many
// were removed. It is not atomic with concurrent logins: a session created
// between the index read and the delete survives.
func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, keys...)
		pipe.Del(ctx, s.userKey(userID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(deleted.Val()), nil
}
