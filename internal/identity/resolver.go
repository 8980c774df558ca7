package identity

import (
	"context"

	"pollboard/pkg/domain"
)

// Resolver maps user ids to display names for poll views. The user directory
// lives upstream with the identity gate; the poll service only consumes it.
type Resolver interface {
	DisplayNames(ctx context.Context, ids []domain.UserID) (map[domain.UserID]string, error)
}

// StaticResolver serves display names from a fixed map, falling back to a
// shortened id. Used in development and tests, and as the inner resolver
// behind the Redis cache when no directory is configured.
type StaticResolver struct {
	names map[domain.UserID]string
}

func NewStaticResolver(names map[domain.UserID]string) *StaticResolver {
	if names == nil {
		names = make(map[domain.UserID]string)
	}
	return &StaticResolver{names: names}
}

func (r *StaticResolver) DisplayNames(_ context.Context, ids []domain.UserID) (map[domain.UserID]string, error) {
	resolved := make(map[domain.UserID]string, len(ids))
	for _, id := range ids {
		if name, ok := r.names[id]; ok {
			resolved[id] = name
			continue
		}
		resolved[id] = shortID(id)
	}
	return resolved, nil
}

func shortID(id domain.UserID) string {
	s := id.String()
	return "user-" + s[:8]
}
