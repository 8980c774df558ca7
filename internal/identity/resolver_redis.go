package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"pollboard/pkg/domain"
)

const resolverKeyPrefix = "identity:name:"

// CachedResolver decorates another Resolver with a Redis cache so repeated
// poll reads do not hammer the upstream directory. Cache failures degrade to
// the inner resolver; they are logged, never surfaced.
type CachedResolver struct {
	inner  Resolver
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedResolver(inner Resolver, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedResolver {
	return &CachedResolver{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (r *CachedResolver) DisplayNames(ctx context.Context, ids []domain.UserID) (map[domain.UserID]string, error) {
	resolved := make(map[domain.UserID]string, len(ids))
	var misses []domain.UserID

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = resolverKeyPrefix + id.String()
	}
	if len(keys) > 0 {
		cached, err := r.client.MGet(ctx, keys...).Result()
		if err != nil {
			r.logger.WarnContext(ctx, "resolver cache read failed", "error", err)
			return r.inner.DisplayNames(ctx, ids)
		}
		for i, raw := range cached {
			if name, ok := raw.(string); ok && name != "" {
				resolved[ids[i]] = name
			} else {
				misses = append(misses, ids[i])
			}
		}
	}

	if len(misses) == 0 {
		return resolved, nil
	}

	fresh, err := r.inner.DisplayNames(ctx, misses)
	if err != nil {
		return nil, err
	}
	pipe := r.client.Pipeline()
	for id, name := range fresh {
		resolved[id] = name
		pipe.Set(ctx, resolverKeyPrefix+id.String(), name, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.WarnContext(ctx, "resolver cache write failed", "error", err)
	}
	return resolved, nil
}
