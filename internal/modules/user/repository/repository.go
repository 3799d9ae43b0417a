package repository

import (
	"context"
	"time"

	"anoa.com/anomologita/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	// FindByUsername matches case-insensitively.
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	FindByRefreshToken(ctx context.Context, token string) (*entity.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, refreshToken string, refreshExpiry time.Time) error
	// RotateRefreshToken replaces oldToken with newToken only if oldToken is
	// still the stored one. It reports whether the swap happened.
	RotateRefreshToken(ctx context.Context, id uuid.UUID, oldToken, newToken string, newExpiry time.Time) (bool, error)
	ClearRefreshToken(ctx context.Context, id uuid.UUID) error
	UpdateUniversity(ctx context.Context, id, universityID uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Preload("University").
		Where("id = ?", id).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Where("username_key = ?", entity.UsernameKey(username)).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByRefreshToken(ctx context.Context, token string) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).
		Where("refresh_token = ?", token).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("username_key = ?", entity.UsernameKey(username)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("LOWER(email) = LOWER(?)", email).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, refreshToken string, refreshExpiry time.Time) error {
	res := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_login":           at,
			"refresh_token":        refreshToken,
			"refresh_token_expiry": refreshExpiry,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) RotateRefreshToken(ctx context.Context, id uuid.UUID, oldToken, newToken string, newExpiry time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ? AND refresh_token = ?", id, oldToken).
		Updates(map[string]interface{}{
			"refresh_token":        newToken,
			"refresh_token_expiry": newExpiry,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *userRepository) ClearRefreshToken(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"refresh_token":        nil,
			"refresh_token_expiry": nil,
		}).Error
}

// UpdateUniversity does not report missing users; MySQL counts unchanged
// rows as unaffected.
func (r *userRepository) UpdateUniversity(ctx context.Context, id, universityID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ?", id).
		Update("university_id", universityID)
	return res.Error
}
