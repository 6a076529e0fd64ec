package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iho/possync/internal/domain"
)

// ReferenceResolver maps the references a client sends to server ids,
// trying natural keys before device-local ids.
type ReferenceResolver struct {
	refs  ReferenceRepository
	cache Cache
	ttl   time.Duration
}

// NewReferenceResolver creates a resolver. cache may be nil.
func NewReferenceResolver(refs ReferenceRepository, cache Cache, ttl time.Duration) *ReferenceResolver {
	if ttl <= 0 {
		ttl = ReferenceCacheTTL
	}
	return &ReferenceResolver{refs: refs, cache: cache, ttl: ttl}
}

func (r *ReferenceResolver) cached(ctx context.Context, key string) (int64, bool) {
	if r.cache == nil {
		return 0, false
	}
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		// misses and cache outages both fall through to the store
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		_ = r.cache.Delete(ctx, key)
		return 0, false
	}
	return id, true
}

func (r *ReferenceResolver) remember(ctx context.Context, key string, id int64) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Set(ctx, key, strconv.FormatInt(id, 10), r.ttl)
}

func cacheKey(kind, naturalKey string) string {
	return "ref:" + kind + ":" + strings.ToLower(naturalKey)
}

// ResolveShop resolves a shop by designation, then by id.
func (r *ReferenceResolver) ResolveShop(ctx context.Context, tx Transaction, designation string, id int64) (int64, error) {
	designation = strings.TrimSpace(designation)
	if designation != "" {
		key := cacheKey("shop", designation)
		if cachedID, ok := r.cached(ctx, key); ok {
			return cachedID, nil
		}
		shop, err := r.refs.ShopByDesignation(ctx, tx, designation)
		if err == nil {
			r.remember(ctx, key, shop.ID)
			return shop.ID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
	}

	if id > 0 {
		shop, err := r.refs.ShopByID(ctx, tx, id)
		if err == nil {
			return shop.ID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
	}

	return 0, fmt.Errorf("%w: designation %q, id %d", domain.ErrShopNotFound, designation, id)
}

// ResolveAgent resolves an agent by username, then by id, and falls back to
// the system agent, creating it on first use.
func (r *ReferenceResolver) ResolveAgent(ctx context.Context, tx Transaction, username string, id int64) (int64, error) {
	username = strings.TrimSpace(username)
	if username != "" {
		key := cacheKey("agent", username)
		if cachedID, ok := r.cached(ctx, key); ok {
			return cachedID, nil
		}
		agent, err := r.refs.AgentByUsername(ctx, tx, username)
		if err == nil {
			r.remember(ctx, key, agent.ID)
			return agent.ID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
	}

	if id > 0 {
		agent, err := r.refs.AgentByID(ctx, tx, id)
		if err == nil {
			return agent.ID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
	}

	return r.systemAgent(ctx, tx)
}

func (r *ReferenceResolver) systemAgent(ctx context.Context, tx Transaction) (int64, error) {
	agent, err := r.refs.AgentByUsername(ctx, tx, domain.SystemAgentUsername)
	if err == nil {
		return agent.ID, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}

	// not cached: the row only exists once the enclosing transaction commits
	agent = &domain.Agent{Username: domain.SystemAgentUsername, FullName: "System"}
	if err := r.refs.CreateAgent(ctx, tx, agent); err != nil {
		return 0, err
	}
	return agent.ID, nil
}

// ResolveClient resolves an optional client by name, then by id. It returns
// nil when neither resolves.
func (r *ReferenceResolver) ResolveClient(ctx context.Context, tx Transaction, name string, id int64) (*int64, error) {
	name = strings.TrimSpace(name)
	if name != "" {
		key := cacheKey("client", name)
		if cachedID, ok := r.cached(ctx, key); ok {
			return &cachedID, nil
		}
		client, err := r.refs.ClientByName(ctx, tx, name)
		if err == nil {
			r.remember(ctx, key, client.ID)
			return &client.ID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	if id > 0 {
		client, err := r.refs.ClientByID(ctx, tx, id)
		if err == nil {
			return &client.ID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}
