package riskzone

import (
	"context"
	"time"

	"backend-hikepal/internal/logger"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const catalogKey = "risk_zones"

// Reader is the remote source of zone definitions.
type Reader interface {
	ReadAll(ctx context.Context, defaultRadius float64) ([]RiskZone, error)
}

// Catalog is a read-through cache over the remote zone store. A failed load
// yields an empty catalog and is not cached, so the next Load retries.
type Catalog struct {
	reader        Reader
	cache         *cache.Cache
	defaultRadius float64
	log           *zap.Logger
}

type CatalogOption func(*Catalog)

func WithTTL(ttl time.Duration) CatalogOption {
	return func(c *Catalog) {
		if ttl <= 0 {
			ttl = cache.NoExpiration
		}
		c.cache = cache.New(ttl, 0)
	}
}

func WithDefaultRadius(r float64) CatalogOption {
	return func(c *Catalog) {
		c.defaultRadius = r
	}
}

func WithLogger(l *zap.Logger) CatalogOption {
	return func(c *Catalog) {
		c.log = logger.OrNop(l).Named("riskzone")
	}
}

func NewCatalog(reader Reader, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		reader:        reader,
		cache:         cache.New(cache.NoExpiration, 0),
		defaultRadius: DefaultRadiusM,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the current zones. The returned slice is a copy owned by the
// caller.
func (c *Catalog) Load(ctx context.Context) []RiskZone {
	if v, ok := c.cache.Get(catalogKey); ok {
		return clone(v.([]RiskZone))
	}
	if c.reader == nil {
		return []RiskZone{}
	}

	zones, err := c.reader.ReadAll(ctx, c.defaultRadius)
	if err != nil {
		c.log.Warn("risk zone load failed, geofencing disabled", zap.Error(err))
		return []RiskZone{}
	}
	if len(zones) == 0 {
		c.log.Info("risk zone catalog is empty")
		return []RiskZone{}
	}
	c.cache.SetDefault(catalogKey, zones)
	c.log.Debug("risk zones loaded", zap.Int("count", len(zones)))
	return clone(zones)
}

// Invalidate drops the cached zones so the next Load hits the store.
func (c *Catalog) Invalidate() {
	c.cache.Delete(catalogKey)
}

func clone(zones []RiskZone) []RiskZone {
	out := make([]RiskZone, len(zones))
	copy(out, zones)
	return out
}
