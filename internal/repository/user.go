package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/observability"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// UserRepository stores accounts created by the auth service.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetOrCreateByEmail(ctx context.Context, email string) (*models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer observability.TrackQuery("get", "users")()

	var u models.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewNotFoundError("User", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) GetOrCreateByEmail(ctx context.Context, email string) (*models.User, error) {
	defer observability.TrackQuery("get_or_create", "users")()

	email = strings.ToLower(strings.TrimSpace(email))
	u, err := r.findByEmail(ctx, email)
	if err == nil || !errors.Is(err, gorm.ErrRecordNotFound) {
		return u, err
	}

	created := &models.User{ID: uuid.NewString(), Email: email, CreatedAt: time.Now().UTC()}
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		// Lost a race with a concurrent first sign-in.
		return r.findByEmail(ctx, email)
	}
	return created, nil
}

func (r *userRepository) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
