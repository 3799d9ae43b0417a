package repository

import (
	"context"

	"anoa.com/anomologita/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostRepository interface {
	Create(ctx context.Context, post *entity.Post) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error)
	FindAll(ctx context.Context, offset, limit int) ([]*entity.Post, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*entity.Post, error)
	FindAllByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Post, error)
	FindByUniversityID(ctx context.Context, universityID uuid.UUID, offset, limit int) ([]*entity.Post, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Post, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// Delete removes the post and its comments in one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

const newestFirst = "created_at DESC, id DESC"

func (r *postRepository) Create(ctx context.Context, post *entity.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *postRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error) {
	var post entity.Post
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) FindAll(ctx context.Context, offset, limit int) ([]*entity.Post, error) {
	var posts []*entity.Post
	err := r.db.WithContext(ctx).
		Order(newestFirst).
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) FindByUserID(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*entity.Post, error) {
	var posts []*entity.Post
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(newestFirst).
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) FindAllByUserID(ctx context.Context, userID uuid.UUID) ([]*entity.Post, error) {
	var posts []*entity.Post
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(newestFirst).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) FindByUniversityID(ctx context.Context, universityID uuid.UUID, offset, limit int) ([]*entity.Post, error) {
	var posts []*entity.Post
	err := r.db.WithContext(ctx).
		Where("university_id = ?", universityID).
		Order(newestFirst).
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	return posts, err
}

// FindByIDs keeps the order of ids; unknown ids are skipped.
func (r *postRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []*entity.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*entity.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	posts := make([]*entity.Post, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (r *postRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entity.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&entity.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
