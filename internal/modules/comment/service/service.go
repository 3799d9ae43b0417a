package comment

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"anoa.com/anomologita/internal/entity"
	commentDto "anoa.com/anomologita/internal/modules/comment/dto"
	commentRepo "anoa.com/anomologita/internal/modules/comment/repository"
	postRepo "anoa.com/anomologita/internal/modules/post/repository"
	post "anoa.com/anomologita/internal/modules/post/service"
	userRepo "anoa.com/anomologita/internal/modules/user/repository"
	"anoa.com/anomologita/pkg/apperror"
	"anoa.com/anomologita/pkg/dto"
	"anoa.com/anomologita/pkg/ratelimiter"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

var (
	ErrCommentNotFound = apperror.NotFound("Comment not found")
	ErrNotCommentOwner = apperror.Forbidden("you can only delete your own comments")
)

type CommentService interface {
	CreateComment(ctx context.Context, userID uuid.UUID, req commentDto.CreateCommentRequest) (*commentDto.CommentResponse, error)
	GetCommentByID(ctx context.Context, commentID uuid.UUID) (*commentDto.CommentResponse, error)
	GetCommentsByPostID(ctx context.Context, postID uuid.UUID, page dto.Pagination) ([]commentDto.CommentResponse, error)
	DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error
}

type commentService struct {
	repo      commentRepo.CommentRepository
	postRepo  postRepo.PostRepository
	userRepo  userRepo.UserRepository
	limiter   *ratelimiter.Limiter
	cooldown  time.Duration
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

func NewCommentService(
	repo commentRepo.CommentRepository,
	postRepository postRepo.PostRepository,
	userRepository userRepo.UserRepository,
	limiter *ratelimiter.Limiter,
	cooldown time.Duration,
) CommentService {
	return &commentService{
		repo:      repo,
		postRepo:  postRepository,
		userRepo:  userRepository,
		limiter:   limiter,
		cooldown:  cooldown,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

func (s *commentService) CreateComment(ctx context.Context, userID uuid.UUID, req commentDto.CreateCommentRequest) (*commentDto.CommentResponse, error) {
	postID, err := uuid.Parse(req.PostID)
	if err != nil {
		return nil, apperror.InvalidInput("invalid post id")
	}

	content := post.SanitizeContent(s.sanitizer, req.Content)
	if content == "" {
		return nil, apperror.InvalidInput("Content is required")
	}
	if utf8.RuneCountInString(content) > post.MaxContentLength {
		return nil, apperror.InvalidInput("Content must not exceed 500 characters")
	}

	exists, err := s.postRepo.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, post.ErrPostNotFound
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, post.ErrUserNotFound
		}
		return nil, err
	}

	if err := s.limiter.Enforce(ctx, userID, "comment", s.cooldown); err != nil {
		return nil, err
	}

	universityID := uuid.Nil
	if user.HasUniversity() {
		universityID = *user.UniversityID
	}

	now := s.now().UTC()
	comment := &entity.Comment{
		Content:      content,
		CreatedAt:    now,
		UpdatedAt:    &now,
		UserID:       user.ID,
		PostID:       postID,
		Username:     user.Username,
		UniversityID: universityID,
	}
	if err := s.repo.Create(ctx, comment); err != nil {
		_ = s.limiter.Clear(context.WithoutCancel(ctx), userID, "comment")
		return nil, err
	}

	resp := commentDto.NewCommentResponse(comment)
	return &resp, nil
}

func (s *commentService) GetCommentByID(ctx context.Context, commentID uuid.UUID) (*commentDto.CommentResponse, error) {
	comment, err := s.repo.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCommentNotFound
		}
		return nil, err
	}

	resp := commentDto.NewCommentResponse(comment)
	return &resp, nil
}

func (s *commentService) GetCommentsByPostID(ctx context.Context, postID uuid.UUID, page dto.Pagination) ([]commentDto.CommentResponse, error) {
	comments, err := s.repo.FindByPostID(ctx, postID, page.Offset(), page.Limit())
	if err != nil {
		return nil, err
	}

	out := make([]commentDto.CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, commentDto.NewCommentResponse(c))
	}
	return out, nil
}

func (s *commentService) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	comment, err := s.repo.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return err
	}

	if !entity.IsOwner(comment, userID) {
		return ErrNotCommentOwner
	}

	if err := s.repo.Delete(ctx, commentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCommentNotFound
		}
		return err
	}
	return nil
}
