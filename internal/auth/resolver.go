package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mirmex/helpdesk/internal/domain"
	"github.com/mirmex/helpdesk/internal/repository"
)

const roleCachePrefix = "helpdesk:role:"

// RoleResolver maps an actor to exactly one role. The directory lookup is
// cached in Redis for a short TTL; Invalidate must be called whenever group
// membership or the superuser flag changes.
type RoleResolver struct {
	users repository.UserRepository
	cache *redis.Client
	ttl   time.Duration
}

// NewRoleResolver constructs the resolver. cache may be nil, in which case
// every resolution hits the directory.
func NewRoleResolver(users repository.UserRepository, cache *redis.Client, ttl time.Duration) *RoleResolver {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RoleResolver{users: users, cache: cache, ttl: ttl}
}

// Resolve returns the single role for the actor.
func (r *RoleResolver) Resolve(ctx context.Context, actorID string) (domain.Role, error) {
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, roleCachePrefix+actorID).Result(); err == nil && cached != "" {
			return domain.Role(cached), nil
		}
	}

	user, err := r.users.GetByID(ctx, actorID)
	if err != nil {
		return "", err
	}
	role := domain.RoleFor(user)

	if r.cache != nil {
		_ = r.cache.Set(ctx, roleCachePrefix+actorID, string(role), r.ttl).Err()
	}
	return role, nil
}

// ResolveFor derives the role from an already loaded directory record,
// consulting and refreshing the cache without a second directory hit.
func (r *RoleResolver) ResolveFor(ctx context.Context, user *domain.User) domain.Role {
	if r.cache != nil {
		if cached, err := r.cache.Get(ctx, roleCachePrefix+user.ID).Result(); err == nil && cached != "" {
			return domain.Role(cached)
		}
	}
	role := domain.RoleFor(user)
	if r.cache != nil {
		_ = r.cache.Set(ctx, roleCachePrefix+user.ID, string(role), r.ttl).Err()
	}
	return role
}

// Invalidate drops the cached role for an actor.
func (r *RoleResolver) Invalidate(ctx context.Context, actorID string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Del(ctx, roleCachePrefix+actorID).Err()
}
