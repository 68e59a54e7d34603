package repository

import (
	"context"
	"errors"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository is the remote profile record.
type ProfileRepository interface {
	// Get returns nil, nil when the user has never saved a profile.
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Upsert(ctx context.Context, userID string, profile *models.Profile) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	defer observability.TrackQuery("get", "profiles")()

	var p models.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.Services == nil {
		p.Services = []string{}
	}
	return &p, nil
}

func (r *profileRepository) Upsert(ctx context.Context, userID string, profile *models.Profile) error {
	defer observability.TrackQuery("upsert", "profiles")()

	row := *profile
	row.UserID = userID
	row.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}
