package opportunity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/earnx/earnx/pkg/logger"
)

// Cache stores JSON-encoded views under string keys
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Cached serves views from a cache and falls through to the wrapped service on a miss.
// Cache failures are logged and never surface to the caller.
type Cached struct {
	next   Service
	cache  Cache
	ttl    time.Duration
	prefix string
	logger *logger.Logger
}

// NewCached wraps next with a cache scoped to one chain
func NewCached(next Service, cache Cache, chainID int64, ttl time.Duration, log *logger.Logger) *Cached {
	return &Cached{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		prefix: fmt.Sprintf("%d:", chainID),
		logger: log.WithField("component", "opportunity_cache"),
	}
}

func (c *Cached) Opportunities(ctx context.Context) ([]View, error) {
	var views []View
	if c.lookup(ctx, c.opportunitiesKey(), &views) {
		return views, nil
	}

	views, err := c.next.Opportunities(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, c.opportunitiesKey(), views)
	return views, nil
}

func (c *Cached) Details(ctx context.Context, id uint64) (*View, error) {
	key := c.detailsKey(id)

	var view View
	if c.lookup(ctx, key, &view) {
		return &view, nil
	}

	v, err := c.next.Details(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, v)
	return v, nil
}

func (c *Cached) Portfolio(ctx context.Context, investor string) ([]PortfolioEntry, error) {
	key := c.portfolioKey(investor)

	var entries []PortfolioEntry
	if c.lookup(ctx, key, &entries) {
		return entries, nil
	}

	entries, err := c.next.Portfolio(ctx, investor)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, entries)
	return entries, nil
}

// Invalidate drops the views a write by investor on the given invoices makes stale
func (c *Cached) Invalidate(ctx context.Context, investor string, invoiceIDs ...uint64) {
	keys := []string{c.opportunitiesKey()}
	if investor != "" {
		keys = append(keys, c.portfolioKey(investor))
	}
	for _, id := range invoiceIDs {
		keys = append(keys, c.detailsKey(id))
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		c.logger.Warn("failed to invalidate cached views", "investor", investor, "error", err)
	}
}

// Refresh drops and immediately rebuilds the opportunity list
func (c *Cached) Refresh(ctx context.Context, investor string) error {
	c.Invalidate(ctx, investor)
	_, err := c.Opportunities(ctx)
	return err
}

// Warm rebuilds the opportunity list regardless of what is cached
func (c *Cached) Warm(ctx context.Context) error {
	start := time.Now()

	views, err := c.next.Opportunities(ctx)
	if err != nil {
		return err
	}
	c.store(ctx, c.opportunitiesKey(), views)

	c.logger.WithDuration(time.Since(start)).Debug("opportunity cache warmed", "count", len(views))
	return nil
}

func (c *Cached) lookup(ctx context.Context, key string, dest interface{}) bool {
	found, err := c.cache.Get(ctx, key, dest)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	return found
}

func (c *Cached) store(ctx context.Context, key string, value interface{}) {
	if err := c.cache.Set(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

func (c *Cached) opportunitiesKey() string {
	return c.prefix + "opportunities"
}

func (c *Cached) detailsKey(id uint64) string {
	return fmt.Sprintf("%sinvoice:%d", c.prefix, id)
}

func (c *Cached) portfolioKey(investor string) string {
	return c.prefix + "portfolio:" + strings.ToLower(investor)
}
