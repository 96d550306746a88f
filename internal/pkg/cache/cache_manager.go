package cache

import (
	"time"

	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/models"
)

// CacheManager holds the discovery read-model caches.
type CacheManager struct {
	Popular       *UnifiedCache[[]models.LocationStats]
	FilterOptions *UnifiedCache[models.SearchFilterOptions]
}

func NewCacheManager(ttl time.Duration, logger *zap.Logger) *CacheManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheManager{
		Popular: NewUnifiedCache[[]models.LocationStats](ttl, "popular_locations", logger),
		// Filter options change only when locations are added, so they live longer.
		FilterOptions: NewUnifiedCache[models.SearchFilterOptions](3*ttl, "search_filters", logger),
	}
}

func (cm *CacheManager) GetAllMetrics() map[string]CacheMetrics {
	return map[string]CacheMetrics{
		cm.Popular.Name():       cm.Popular.GetMetrics(),
		cm.FilterOptions.Name(): cm.FilterOptions.GetMetrics(),
	}
}
