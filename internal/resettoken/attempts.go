package resettoken

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryAttemptStore is a process-local AttemptStore. Entries expire with
// their token and are evicted lazily on read.
type MemoryAttemptStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryAttemptStore) Failures(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return 0, nil
	}
	if s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return 0, nil
	}
	return e.count, nil
}

func (s *MemoryAttemptStore) RecordFailure(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || s.now().After(e.expiresAt) {
		s.entries[key] = memoryEntry{count: 1, expiresAt: s.now().Add(ttl)}
		return nil
	}
	e.count++
	s.entries[key] = e
	return nil
}

// RedisAttemptStore shares the lockout counter across instances. The
// increment sets the TTL only when the key is created, so the counter's
// lifetime tracks the first failure.
type RedisAttemptStore struct {
	rdb    *redis.Client
	prefix string
}

var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisAttemptStore(rdb *redis.Client) *RedisAttemptStore {
	return &RedisAttemptStore{rdb: rdb, prefix: "pwd:reset:attempts:"}
}

func (s *RedisAttemptStore) Failures(ctx context.Context, key string) (int, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *RedisAttemptStore) RecordFailure(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return incrExpireScript.Run(ctx, s.rdb, []string{s.prefix + key}, ttl.Milliseconds()).Err()
}
