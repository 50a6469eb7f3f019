package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shopmesh/orderflow/internal/pkg/cache"
)

const listCacheKey = "items:all"

// Service validates catalog writes and serves reads through the cache.
type Service struct {
	repo  Repository
	cache cache.Cache
	ttl   time.Duration
}

func NewService(repo Repository, c cache.Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: c, ttl: ttl}
}

// Create validates and persists a new item, then drops the cached listing.
func (s *Service) Create(ctx context.Context, name string, price float64) (*Item, error) {
	if name == "" {
		return nil, ErrInvalidItem
	}
	if price < 0 {
		return nil, ErrInvalidPrice
	}

	item := &Item{
		ID:        uuid.NewString(),
		Name:      name,
		Price:     price,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, s.cache.Key(listCacheKey)); err != nil {
			slog.WarnContext(ctx, "catalog cache invalidation failed", "error", err)
		}
	}
	return item, nil
}

// List returns every item, preferring the cached copy. A cache failure
// falls through to the repository.
func (s *Service) List(ctx context.Context) ([]Item, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, s.cache.Key(listCacheKey))
		if err != nil {
			slog.WarnContext(ctx, "catalog cache read failed", "error", err)
		} else if cached != "" {
			var items []Item
			if err := json.Unmarshal([]byte(cached), &items); err == nil {
				return items, nil
			}
		}
	}

	items, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	if s.cache != nil {
		if payload, err := json.Marshal(items); err == nil {
			if err := s.cache.Set(ctx, s.cache.Key(listCacheKey), payload, s.ttl); err != nil {
				slog.WarnContext(ctx, "catalog cache write failed", "error", err)
			}
		}
	}
	return items, nil
}

// Snapshot resolves the given ids against the store and returns the items
// by value. Any unknown id fails the whole lookup with ErrNotFound.
func (s *Service) Snapshot(ctx context.Context, ids []string) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve items: %w", err)
	}

	found := make(map[string]Item, len(items))
	for _, it := range items {
		found[it.ID] = it
	}

	// Preserve the requested order and catch duplicates or unknown ids.
	out := make([]Item, 0, len(ids))
	for _, id := range ids {
		it, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		out = append(out, it)
	}
	return out, nil
}
