package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
)

// CachedAdapter serves repeated identical requests from a shared cache so rate-limited
// providers are called at most once per TTL. Cache failures fall through to the provider.
type CachedAdapter struct {
	next   Adapter
	cache  ports.Cache
	ttl    time.Duration
	logger *slog.Logger
}

var _ Adapter = (*CachedAdapter)(nil)

// NewCachedAdapter wraps next with cache; a non-positive ttl disables caching.
func NewCachedAdapter(next Adapter, cache ports.Cache, ttl time.Duration, logger *slog.Logger) *CachedAdapter {
	return &CachedAdapter{next: next, cache: cache, ttl: ttl, logger: logger}
}

// Name reports the wrapped adapter's name.
func (c *CachedAdapter) Name() string {
	return c.next.Name()
}

// Fetch returns cached items when present, otherwise calls the provider and stores the result.
func (c *CachedAdapter) Fetch(ctx context.Context, req Request) ([]domain.ContentItem, error) {
	if c.cache == nil || c.ttl <= 0 {
		return c.next.Fetch(ctx, req)
	}

	key := c.key(req)
	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.warn("cache read failed", "key", key, "error", err)
	} else if ok {
		var items []domain.ContentItem
		if err := json.Unmarshal(raw, &items); err == nil {
			c.debug("cache hit", "provider", c.Name(), "items", len(items))
			return items, nil
		}
		c.warn("cache entry corrupt", "key", key)
	}

	items, err := c.next.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(items)
	if err != nil {
		c.warn("cache encode failed", "error", err)
		return items, nil
	}
	if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
		c.warn("cache write failed", "key", key, "error", err)
	}
	return items, nil
}

func (c *CachedAdapter) key(req Request) string {
	h := sha256.New()
	h.Write([]byte(req.Query))
	if req.Window != nil {
		h.Write([]byte(req.Window.Start.UTC().Truncate(time.Hour).Format(time.RFC3339)))
		h.Write([]byte(req.Window.End.UTC().Truncate(time.Hour).Format(time.RFC3339)))
	}
	return "briefcaster:fetch:" + c.Name() + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

func (c *CachedAdapter) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *CachedAdapter) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
