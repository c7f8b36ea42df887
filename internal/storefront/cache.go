package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hanko-field/teamwear/internal/domain"
)

const (
	metricNamespace        = "github.com/hanko-field/teamwear/internal/storefront"
	defaultPrefetchWorkers = 4
)

// ProductLoader fetches a product by handle.
type ProductLoader interface {
	Product(ctx context.Context, handle string) (domain.Product, error)
}

// ProductCache memoises successful product loads for the life of the process.
// Concurrent loads of the same handle share one upstream request.
type ProductCache struct {
	loader ProductLoader
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]domain.Product
	group   singleflight.Group

	lookups        metric.Int64Counter
	lookupsEnabled bool
}

type cacheConfig struct {
	logger *zap.Logger
	meter  metric.Meter
}

// CacheOption customises ProductCache construction.
type CacheOption func(*cacheConfig)

// WithCacheLogger sets the logger used for prefetch diagnostics.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(cfg *cacheConfig) {
		cfg.logger = logger
	}
}

// WithMeter injects a custom OpenTelemetry meter.
func WithMeter(m metric.Meter) CacheOption {
	return func(cfg *cacheConfig) {
		cfg.meter = m
	}
}

// NewProductCache wraps loader with a handle-keyed cache.
func NewProductCache(loader ProductLoader, opts ...CacheOption) (*ProductCache, error) {
	if loader == nil {
		return nil, errors.New("storefront: product loader is required")
	}
	cfg := cacheConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	meter := cfg.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(metricNamespace)
	}

	lookups, err := meter.Int64Counter(
		"storefront.product_cache.lookups",
		metric.WithDescription("Product cache lookups partitioned by result"),
	)
	if err != nil {
		cfg.logger.Warn("storefront: unable to register cache metric", zap.Error(err))
	}

	return &ProductCache{
		loader:         loader,
		logger:         cfg.logger,
		entries:        make(map[string]domain.Product),
		lookups:        lookups,
		lookupsEnabled: err == nil,
	}, nil
}

// Product returns the cached product or loads it. Failures are not cached.
func (c *ProductCache) Product(ctx context.Context, handle string) (domain.Product, error) {
	key := strings.TrimSpace(handle)
	if product, ok := c.cached(key); ok {
		c.record(ctx, "hit")
		return product, nil
	}
	c.record(ctx, "miss")

	// The shared load outlives any single caller so one cancelled request does not
	// fail the others waiting on the same handle.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if product, ok := c.cached(key); ok {
			return product, nil
		}
		product, err := c.loader.Product(loadCtx, key)
		if err != nil {
			return domain.Product{}, err
		}
		c.mu.Lock()
		c.entries[key] = product
		c.mu.Unlock()
		return product, nil
	})

	select {
	case <-ctx.Done():
		return domain.Product{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Product{}, res.Err
		}
		return res.Val.(domain.Product), nil
	}
}

// Prefetch warms the cache for handles with at most workers concurrent loads.
// Every handle is attempted; the returned error joins the individual failures.
func (c *ProductCache) Prefetch(ctx context.Context, handles []string, workers int) error {
	if workers <= 0 {
		workers = defaultPrefetchWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var (
		mu   sync.Mutex
		errs []error
	)
	seen := make(map[string]struct{}, len(handles))
	for _, handle := range handles {
		handle = strings.TrimSpace(handle)
		if handle == "" {
			continue
		}
		if _, dup := seen[handle]; dup {
			continue
		}
		seen[handle] = struct{}{}

		g.Go(func() error {
			if _, err := c.Product(gctx, handle); err != nil {
				c.logger.Warn("storefront: product prefetch failed", zap.String("handle", handle), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("prefetch %s: %w", handle, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Len reports how many products are cached.
func (c *ProductCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ProductCache) cached(key string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	product, ok := c.entries[key]
	return product, ok
}

func (c *ProductCache) record(ctx context.Context, result string) {
	if !c.lookupsEnabled {
		return
	}
	c.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
