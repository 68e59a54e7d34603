// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"marketplace/internal/models"
	"marketplace/internal/observability"

	"gorm.io/gorm"
)

// ListingRepository is the remote listing collection.
type ListingRepository interface {
	// Select returns up to limit listings, newest first. limit <= 0 means all.
	Select(ctx context.Context, limit int) ([]models.Listing, error)
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	Insert(ctx context.Context, listing *models.Listing) error
	// Update applies patch (column -> value) to one listing.
	Update(ctx context.Context, id string, patch map[string]any) error
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) Select(ctx context.Context, limit int) ([]models.Listing, error) {
	defer observability.TrackQuery("select", "listings")()

	var listings []models.Listing
	q := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepository) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	defer observability.TrackQuery("get", "listings")()

	var listing models.Listing
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("Listing", id)
	}
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) Insert(ctx context.Context, listing *models.Listing) error {
	defer observability.TrackQuery("insert", "listings")()
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *listingRepository) Update(ctx context.Context, id string, patch map[string]any) error {
	defer observability.TrackQuery("update", "listings")()

	res := r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Listing", id)
	}
	return nil
}
