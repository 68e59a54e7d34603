// Package bootstrap connects the runtime dependencies shared by the
// commands.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketplace/internal/cache"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/repository"
	"marketplace/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedListings inserts this many demo listings when the listings table
	// is empty. Zero disables seeding.
	SeedListings int
	// Seed fixes the demo data generator; zero picks one from the clock.
	Seed int64
}

// InitRuntime connects to DB and Redis and optionally seeds demo listings.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedListings > 0 {
		if _, err := SeedIfEmpty(ctx, db, opts.SeedListings, opts.Seed); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo listings: %w", err)
		}
	}

	return db, r, nil
}

// SeedIfEmpty inserts n generated listings unless the table already has
// rows. It returns how many were inserted.
func SeedIfEmpty(ctx context.Context, db *gorm.DB, n int, seedValue int64) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Listing{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		middleware.Logger.InfoContext(ctx, "listings present, skipping demo seed", slog.Int64("count", count))
		return 0, nil
	}

	now := time.Now().UTC()
	if seedValue == 0 {
		seedValue = now.UnixNano()
	}
	inserted, err := seed.NewFactory(seedValue, now).SeedListings(ctx, repository.NewListingRepository(db), n)
	if err != nil {
		return len(inserted), err
	}
	middleware.Logger.InfoContext(ctx, "seeded demo listings", slog.Int("count", len(inserted)))
	return len(inserted), nil
}
