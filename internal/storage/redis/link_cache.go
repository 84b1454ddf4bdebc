package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/linkpulse/linkpulse/internal/infrastructure/logger"
	"github.com/linkpulse/linkpulse/internal/processing/links"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var linkCacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "link_cache_lookups_total",
		Help: "Link cache lookups by outcome",
	},
	[]string{"outcome"}, // hit | miss
)

// CachedLinksRepository decorates a LinkRepository with a cache-aside Redis
// layer on token lookups. Expiration is still evaluated at read time by the
// service, so caching an expiring link is safe. Cache failures degrade to the
// inner repository, never to a request failure.
type CachedLinksRepository struct {
	inner  links.LinkRepository
	client *redis.Client
	ttl    time.Duration
}

type cachedLink struct {
	Token       string     `json:"token"`
	Destination string     `json:"destination"`
	OwnerID     string     `json:"ownerId"`
	Remark      string     `json:"remark"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

func NewCachedLinksRepository(inner links.LinkRepository, client *redis.Client, ttl time.Duration) *CachedLinksRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedLinksRepository{inner: inner, client: client, ttl: ttl}
}

func cacheKey(token string) string { return "link:" + token }

func (r *CachedLinksRepository) Insert(ctx context.Context, link *links.Link) error {
	return r.inner.Insert(ctx, link)
}

func (r *CachedLinksRepository) FindByToken(ctx context.Context, token string) (*links.Link, error) {
	if cached := r.get(ctx, token); cached != nil {
		return cached, nil
	}

	link, err := r.inner.FindByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	r.set(ctx, link)
	return link, nil
}

func (r *CachedLinksRepository) FindByOwner(ctx context.Context, ownerID string) ([]*links.Link, error) {
	return r.inner.FindByOwner(ctx, ownerID)
}

func (r *CachedLinksRepository) UpdateDestination(ctx context.Context, token, destination string) (*links.Link, error) {
	link, err := r.inner.UpdateDestination(ctx, token, destination)
	if err != nil {
		return nil, err
	}
	r.invalidate(ctx, token)
	return link, nil
}

func (r *CachedLinksRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	deleted, err := r.inner.DeleteByToken(ctx, token)
	if err != nil {
		return false, err
	}
	if deleted {
		r.invalidate(ctx, token)
	}
	return deleted, nil
}

func (r *CachedLinksRepository) get(ctx context.Context, token string) *links.Link {
	data, err := r.client.Get(ctx, cacheKey(token)).Bytes()
	if err == redis.Nil {
		linkCacheLookups.WithLabelValues("miss").Inc()
		return nil
	}
	if err != nil {
		logger.Warn("link cache read failed", zap.Error(err), zap.String("token", token))
		linkCacheLookups.WithLabelValues("miss").Inc()
		return nil
	}

	var c cachedLink
	if err := json.Unmarshal(data, &c); err != nil {
		logger.Warn("link cache entry corrupt, dropping", zap.Error(err), zap.String("token", token))
		r.invalidate(ctx, token)
		linkCacheLookups.WithLabelValues("miss").Inc()
		return nil
	}

	linkCacheLookups.WithLabelValues("hit").Inc()
	return &links.Link{
		Token:       c.Token,
		Destination: c.Destination,
		OwnerID:     c.OwnerID,
		Remark:      c.Remark,
		CreatedAt:   c.CreatedAt,
		ExpiresAt:   c.ExpiresAt,
	}
}

func (r *CachedLinksRepository) set(ctx context.Context, link *links.Link) {
	data, err := json.Marshal(cachedLink{
		Token:       link.Token,
		Destination: link.Destination,
		OwnerID:     link.OwnerID,
		Remark:      link.Remark,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	})
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, cacheKey(link.Token), data, r.ttl).Err(); err != nil {
		logger.Warn("link cache write failed", zap.Error(err), zap.String("token", link.Token))
	}
}

func (r *CachedLinksRepository) invalidate(ctx context.Context, token string) {
	if err := r.client.Del(ctx, cacheKey(token)).Err(); err != nil {
		logger.Warn("link cache invalidation failed", zap.Error(err), zap.String("token", token))
	}
}
