package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const serviceCacheKeyPrefix = "helpdesk:service:"

// cachedServiceRepository decorates a ServiceRepository with a Redis
// read-through cache. The catalog is read on every ticket creation but
// changes rarely. Cache failures fall back to the inner repository.
type cachedServiceRepository struct {
	inner  ServiceRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedServiceRepository wraps inner with a Redis cache.
func NewCachedServiceRepository(inner ServiceRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) ServiceRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &cachedServiceRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (r *cachedServiceRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	key := serviceCacheKeyPrefix + id
	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var svc domain.Service
		if err := json.Unmarshal(raw, &svc); err == nil {
			return &svc, nil
		}
		r.logger.Warn("corrupt service cache entry", zap.String("service_id", id))
	}

	svc, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(svc); err == nil {
		if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
			r.logger.Warn("service cache write failed", zap.Error(err))
		}
	}
	return svc, nil
}

func (r *cachedServiceRepository) List(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	return r.inner.List(ctx, activeOnly)
}
