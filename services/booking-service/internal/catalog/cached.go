package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/agendafacil/libs/cache"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/model"
)

// Cached fronts a Reader with a shared cache. Catalog data changes rarely and
// is treated as immutable for the length of one booking call, so a short TTL is enough.
// Cache failures are logged and fall through to the underlying reader.
type Cached struct {
	next   Reader
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next Reader, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{next: next, cache: c, ttl: ttl, logger: logger}
}

func (c *Cached) GetCompany(ctx context.Context, id string) (model.Company, error) {
	return cached(ctx, c, "company:"+id, func() (model.Company, error) { return c.next.GetCompany(ctx, id) })
}

func (c *Cached) GetEmployee(ctx context.Context, id string) (model.Employee, error) {
	return cached(ctx, c, "employee:"+id, func() (model.Employee, error) { return c.next.GetEmployee(ctx, id) })
}

func (c *Cached) GetServices(ctx context.Context, ids []string) ([]model.Service, error) {
	out := make([]model.Service, 0, len(ids))
	for _, id := range ids {
		svc, err := cached(ctx, c, "service:"+id, func() (model.Service, error) {
			list, err := c.next.GetServices(ctx, []string{id})
			if err != nil {
				return model.Service{}, err
			}
			return list[0], nil
		})
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

func (c *Cached) ListServices(ctx context.Context, companyID string) ([]model.Service, error) {
	return cached(ctx, c, "services:"+companyID, func() ([]model.Service, error) { return c.next.ListServices(ctx, companyID) })
}

func cached[T any](ctx context.Context, c *Cached, key string, load func() (T, error)) (T, error) {
	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("catalog cache read failed", "key", key, "err", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		c.logger.Warn("catalog cache entry unreadable", "key", key)
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn("catalog cache write failed", "key", key, "err", err)
		}
	}
	return v, nil
}
