package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"menu-service/internal/models"
)

// DefaultCategoryCacheTTL bounds how stale the cached upstream category list
// may get. Categories rarely change outside an import run, and the cache is
// invalidated after every successful category submission anyway.
const DefaultCategoryCacheTTL = 30 * time.Minute

// categoryLister is the upstream call the directory wraps.
type categoryLister interface {
	ListCategories(ctx context.Context, token string) ([]models.Category, error)
}

// CategoryDirectory serves the upstream category list with a per-tenant
// redis cache in front. With no redis client (or a down redis) every lookup
// goes straight upstream.
type CategoryDirectory struct {
	client categoryLister
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

func NewCategoryDirectory(client categoryLister, redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *CategoryDirectory {
	if ttl <= 0 {
		ttl = DefaultCategoryCacheTTL
	}
	return &CategoryDirectory{
		client: client,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger.WithField("component", "category-directory"),
	}
}

func categoryCacheKey(tenantID string) string {
	return fmt.Sprintf("menu:categories:%s", tenantID)
}

// ListCategories returns the tenant's upstream categories, cache first.
func (d *CategoryDirectory) ListCategories(ctx context.Context, token, tenantID string) ([]models.Category, error) {
	if d.redis != nil {
		if cached, err := d.redis.Get(ctx, categoryCacheKey(tenantID)).Bytes(); err == nil {
			var categories []models.Category
			if err := json.Unmarshal(cached, &categories); err == nil {
				return categories, nil
			}
		}
	}

	categories, err := d.client.ListCategories(ctx, token)
	if err != nil {
		return nil, err
	}

	if d.redis != nil {
		if data, err := json.Marshal(categories); err == nil {
			if err := d.redis.Set(ctx, categoryCacheKey(tenantID), data, d.ttl).Err(); err != nil {
				d.logger.WithError(err).Debug("Failed to cache categories")
			}
		}
	}

	return categories, nil
}

// Invalidate drops the tenant's cached list. Called after category
// submissions so freshly created categories resolve in the items stage.
func (d *CategoryDirectory) Invalidate(ctx context.Context, tenantID string) {
	if d.redis == nil {
		return
	}
	if err := d.redis.Del(ctx, categoryCacheKey(tenantID)).Err(); err != nil {
		d.logger.WithError(err).Debug("Failed to invalidate category cache")
	}
}
