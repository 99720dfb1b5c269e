package report

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/redis/go-redis/v9"
)

// Registry tracks downloadable reports. Claim succeeds at most once per name,
// which is what makes a download link single use.
type Registry interface {
	Register(ctx context.Context, name string, expiresAt time.Time) error
	// Claim removes name and reports whether it was registered and unexpired.
	Claim(ctx context.Context, name string, now time.Time) (bool, error)
	// Expired removes and returns every name whose deadline is before now.
	Expired(ctx context.Context, now time.Time) ([]string, error)
}

// NewRegistry uses Redis when it is configured and reachable and falls back to
// an in-process registry otherwise.
func NewRegistry(ctx context.Context, cfg internal.RedisConfig, lg *slog.Logger) (Registry, func() error) {
	noop := func() error { return nil }
	if !cfg.Enabled() {
		lg.Warn("redis is not configured, report downloads are tracked in memory")
		return NewMemoryRegistry(), noop
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		lg.Error("failed to connect to redis, report downloads are tracked in memory", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return NewMemoryRegistry(), noop
	}

	lg.Info("connected to redis", "addr", cfg.Addr)
	return NewRedisRegistry(client), client.Close
}

type MemoryRegistry struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]time.Time)}
}

func (r *MemoryRegistry) Register(_ context.Context, name string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = expiresAt
	return nil
}

func (r *MemoryRegistry) Claim(_ context.Context, name string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	expiresAt, ok := r.entries[name]
	if !ok || now.After(expiresAt) {
		// expired entries stay for the janitor, which also owns the blob
		return false, nil
	}
	delete(r.entries, name)
	return true, nil
}

func (r *MemoryRegistry) Expired(_ context.Context, now time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	for name, expiresAt := range r.entries {
		if now.After(expiresAt) {
			names = append(names, name)
			delete(r.entries, name)
		}
	}
	return names, nil
}

const (
	redisKeyPrefix = "reports:download:"
	redisDeadlines = "reports:deadlines"
)

// RedisRegistry keeps one key per report, claimed with GETDEL, and a sorted
// set of deadlines for the janitor.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Register(ctx context.Context, name string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("report expiry is in the past")
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKeyPrefix+name, expiresAt.Unix(), ttl)
		pipe.ZAdd(ctx, redisDeadlines, redis.Z{Score: float64(expiresAt.Unix()), Member: name})
		return nil
	})
	return err
}

func (r *RedisRegistry) Claim(ctx context.Context, name string, now time.Time) (bool, error) {
	raw, err := r.client.GetDel(ctx, redisKeyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if deadline, perr := strconv.ParseInt(raw, 10, 64); perr == nil && now.Unix() > deadline {
		return false, nil
	}
	// a leftover deadline only sends the janitor after a blob that is already gone
	r.client.ZRem(ctx, redisDeadlines, name)
	return true, nil
}

func (r *RedisRegistry) Expired(ctx context.Context, now time.Time) ([]string, error) {
	candidates, err := r.client.ZRangeByScore(ctx, redisDeadlines, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, name := range candidates {
		// ZREM decides which janitor instance owns the sweep of name
		removed, err := r.client.ZRem(ctx, redisDeadlines, name).Result()
		if err != nil {
			return names, err
		}
		if removed == 1 {
			r.client.Del(ctx, redisKeyPrefix+name)
			names = append(names, name)
		}
	}
	return names, nil
}
