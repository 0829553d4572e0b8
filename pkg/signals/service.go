package signals

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/plannerhq/vendorbook/pkg/cache"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/store"
)

const effectiveCacheTTL = 10 * time.Minute

// Service resolves the effective status view for an owner: the system
// catalog with that owner's enable/disable overrides applied.
type Service struct {
	store store.StatusStore
	cache *cache.Client
}

// NewService creates a new signals service. cacheClient may be nil, in
// which case every call reads straight from the store.
func NewService(statusStore store.StatusStore, cacheClient *cache.Client) *Service {
	return &Service{
		store: statusStore,
		cache: cacheClient,
	}
}

func effectiveCacheKey(ownerID int) string {
	return fmt.Sprintf("statuses:%d:effective", ownerID)
}

// Effective returns the full catalog in pipeline order with the owner's
// overrides applied.
func (s *Service) Effective(ctx context.Context, ownerID int) ([]domain.StatusDefinition, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, effectiveCacheKey(ownerID)); err == nil {
			var defs []domain.StatusDefinition
			if err := json.Unmarshal([]byte(raw), &defs); err == nil {
				return defs, nil
			}
		}
	}

	overrides, err := s.store.GetStatusOverrides(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading status overrides: %w", err)
	}

	defs := Catalog()
	for i := range defs {
		if enabled, ok := overrides[defs[i].Slug]; ok {
			defs[i].IsEnabled = enabled
		}
	}

	if s.cache != nil {
		if data, err := json.Marshal(defs); err == nil {
			// Cache failures only cost us a refetch next time.
			_ = s.cache.Set(ctx, effectiveCacheKey(ownerID), string(data), effectiveCacheTTL)
		}
	}

	return defs, nil
}

// Enabled returns only the statuses the owner has not disabled. The
// detection engine works off this view.
func (s *Service) Enabled(ctx context.Context, ownerID int) ([]domain.StatusDefinition, error) {
	defs, err := s.Effective(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	enabled := make([]domain.StatusDefinition, 0, len(defs))
	for _, def := range defs {
		if def.IsEnabled {
			enabled = append(enabled, def)
		}
	}
	return enabled, nil
}

// SetEnabled records an owner override for a catalog status and returns
// the definition as the owner now sees it.
func (s *Service) SetEnabled(ctx context.Context, ownerID int, slug string, enabled bool) (*domain.StatusDefinition, error) {
	def, ok := Lookup(slug)
	if !ok {
		return nil, domain.NewNotFoundError("status")
	}

	if err := s.store.SetStatusOverride(ctx, ownerID, slug, enabled); err != nil {
		return nil, fmt.Errorf("saving status override: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Delete(ctx, effectiveCacheKey(ownerID))
	}

	def.IsEnabled = enabled
	return &def, nil
}
