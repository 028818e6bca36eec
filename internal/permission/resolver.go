package permission

import (
	"context"
	"fmt"
	"time"

	"backend/internal/cache"
	"backend/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTTL bounds how long a resolved level may be served from cache.
const DefaultTTL = time.Hour

// Resolver computes effective access levels. Results are cached per
// (user, app); any role change or explicit grant must call Invalidate before
// the mutation returns so no caller observes a stale level.
type Resolver struct {
	providers []Provider
	store     cache.Store
	ttl       time.Duration
	log       *zap.SugaredLogger
}

// NewResolver wires the standard provider chain. overrides may come from the
// app_permissions repository or a test fake.
func NewResolver(store cache.Store, overrides OverrideSource, log *zap.SugaredLogger) *Resolver {
	return &Resolver{
		providers: []Provider{
			superuserProvider{},
			overrideProvider{source: overrides},
			roleDefaultProvider{},
		},
		store: store,
		ttl:   DefaultTTL,
		log:   log,
	}
}

// WithTTL overrides the cache expiry; mainly for tests.
func (r *Resolver) WithTTL(ttl time.Duration) *Resolver {
	r.ttl = ttl
	return r
}

func cacheKey(userID uuid.UUID, app string) string {
	return fmt.Sprintf("user_permissions:%s:%s", userID, app)
}

func contextKey(userID uuid.UUID) string {
	return fmt.Sprintf("user_context:%s", userID)
}

// Resolve returns the effective level for user on app. A user without a
// profile resolves to none for every app; that is an answer, not an error.
// Cache failures degrade to a direct resolution.
func (r *Resolver) Resolve(ctx context.Context, user *model.User, app string) (Level, error) {
	if user == nil || !user.IsActive {
		return LevelNone, nil
	}

	key := cacheKey(user.ID, app)
	if cached, ok := r.store.Get(key); ok {
		return ParseLevel(cached), nil
	}

	level, err := r.resolveUncached(ctx, user, app)
	if err != nil {
		return LevelNone, err
	}

	r.store.Set(key, level.String(), r.ttl)
	return level, nil
}

func (r *Resolver) resolveUncached(ctx context.Context, user *model.User, app string) (Level, error) {
	for _, p := range r.providers {
		level, ok, err := p.Resolve(ctx, user, app)
		if err != nil {
			return LevelNone, fmt.Errorf("resolve %s for user %s: %w", app, user.ID, err)
		}
		if ok {
			return level, nil
		}
	}
	return LevelNone, nil
}

// Check resolves and enforces a required level. The returned *PermissionError
// carries the app and required level for the denial message.
func (r *Resolver) Check(ctx context.Context, user *model.User, app string, required Level) error {
	level, err := r.Resolve(ctx, user, app)
	if err != nil {
		return err
	}
	if !level.Satisfies(required) {
		return &PermissionError{App: app, Required: required, Actual: level}
	}
	return nil
}

// Invalidate evicts every cached entry for a user across all known apps plus
// the user context blob. Callers must invalidate before reporting a
// permission-affecting mutation as successful.
func (r *Resolver) Invalidate(userID uuid.UUID) {
	for _, app := range model.KnownApps {
		r.store.Delete(cacheKey(userID, app))
	}
	r.store.Delete(contextKey(userID))
	if r.log != nil {
		r.log.Infow("invalidated permission cache", "user_id", userID)
	}
}
