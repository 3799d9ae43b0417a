package repository

import (
	"context"

	"anoa.com/anomologita/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UniversityRepository interface {
	Create(ctx context.Context, university *entity.University) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.University, error)
	FindAll(ctx context.Context, offset, limit int) ([]*entity.University, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	// ShortNames resolves many university ids at once. Unknown ids are absent
	// from the result.
	ShortNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

type universityRepository struct {
	db *gorm.DB
}

func NewUniversityRepository(db *gorm.DB) UniversityRepository {
	return &universityRepository{db: db}
}

func (r *universityRepository) Create(ctx context.Context, university *entity.University) error {
	return r.db.WithContext(ctx).Create(university).Error
}

func (r *universityRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.University, error) {
	var university entity.University
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&university).Error; err != nil {
		return nil, err
	}
	return &university, nil
}

func (r *universityRepository) FindAll(ctx context.Context, offset, limit int) ([]*entity.University, error) {
	var universities []*entity.University
	err := r.db.WithContext(ctx).
		Order("name ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&universities).Error
	return universities, err
}

func (r *universityRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.University{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *universityRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.University{}).Where("LOWER(name) = LOWER(?)", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *universityRepository) ShortNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	var rows []entity.University
	if err := r.db.WithContext(ctx).
		Select("id", "short_name").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		names[u.ID] = u.ShortName
	}
	return names, nil
}
