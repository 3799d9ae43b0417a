package post

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"anoa.com/anomologita/internal/entity"
	postDto "anoa.com/anomologita/internal/modules/post/dto"
	postRepo "anoa.com/anomologita/internal/modules/post/repository"
	search "anoa.com/anomologita/internal/modules/search/service"
	uniRepo "anoa.com/anomologita/internal/modules/university/repository"
	userRepo "anoa.com/anomologita/internal/modules/user/repository"
	"anoa.com/anomologita/pkg/apperror"
	"anoa.com/anomologita/pkg/dto"
	"anoa.com/anomologita/pkg/ratelimiter"
	"anoa.com/anomologita/pkg/storage"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const MaxContentLength = 500

var (
	ErrPostNotFound = apperror.NotFound("Post not found")
	ErrUserNotFound = apperror.NotFound("User not found")
	ErrNotPostOwner = apperror.Forbidden("you can only delete your own posts")
	ErrContentEmpty = apperror.InvalidInput("Content is required")
	ErrContentLong  = apperror.InvalidInput("Content must not exceed 500 characters")
	// ErrUniversityRequired is a server-side failure: clients are expected
	// to set a university before they can reach post creation.
	ErrUniversityRequired = apperror.New(http.StatusInternalServerError, "User must have a university assigned before creating posts.", nil)
)

// FeedPublisher receives every created post.
type FeedPublisher interface {
	PublishPost(post postDto.PostResponse)
}

type Options struct {
	ImageFolder string
	Cooldown    time.Duration
}

type PostService interface {
	CreatePost(ctx context.Context, userID uuid.UUID, input postDto.CreatePostInput) (*postDto.PostResponse, error)
	GetPostByID(ctx context.Context, postID uuid.UUID) (*postDto.PostResponse, error)
	GetAllPosts(ctx context.Context, page dto.Pagination) ([]postDto.PostResponse, error)
	GetPostsByUserID(ctx context.Context, userID uuid.UUID, page dto.Pagination) ([]postDto.PostResponse, error)
	GetPostsByUniversityID(ctx context.Context, universityID uuid.UUID, page dto.Pagination) ([]postDto.PostResponse, error)
	SearchPosts(ctx context.Context, req postDto.SearchPostsRequest) ([]postDto.PostResponse, error)
	DeletePost(ctx context.Context, userID uuid.UUID, postID uuid.UUID) error
}

type postService struct {
	postRepo       postRepo.PostRepository
	userRepo       userRepo.UserRepository
	universityRepo uniRepo.UniversityRepository
	fileStorage    storage.ImageStorage
	meili          search.MeiliSearchService
	feed           FeedPublisher
	limiter        *ratelimiter.Limiter
	sanitizer      *bluemonday.Policy
	opts           Options
}

func NewPostService(
	postRepo postRepo.PostRepository,
	userRepo userRepo.UserRepository,
	universityRepo uniRepo.UniversityRepository,
	fileStorage storage.ImageStorage,
	meili search.MeiliSearchService,
	feed FeedPublisher,
	limiter *ratelimiter.Limiter,
	opts Options,
) PostService {
	if opts.ImageFolder == "" {
		opts.ImageFolder = "post-images"
	}
	if fileStorage == nil {
		fileStorage = storage.Unconfigured()
	}
	if meili == nil {
		meili = search.Disabled()
	}
	return &postService{
		postRepo:       postRepo,
		userRepo:       userRepo,
		universityRepo: universityRepo,
		fileStorage:    fileStorage,
		meili:          meili,
		feed:           feed,
		limiter:        limiter,
		sanitizer:      bluemonday.StrictPolicy(),
		opts:           opts,
	}
}

// SanitizeContent strips markup but keeps the text as typed.
func SanitizeContent(policy *bluemonday.Policy, content string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(content)))
}

func (s *postService) CreatePost(ctx context.Context, userID uuid.UUID, input postDto.CreatePostInput) (*postDto.PostResponse, error) {
	content := SanitizeContent(s.sanitizer, input.Content)
	if content == "" {
		return nil, ErrContentEmpty
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, ErrContentLong
	}

	if err := s.limiter.Enforce(ctx, userID, "post", s.opts.Cooldown); err != nil {
		return nil, err
	}

	// Release the cooldown if the post never gets created
	creationFailed := true
	defer func() {
		if creationFailed {
			_ = s.limiter.Clear(context.WithoutCancel(ctx), userID, "post")
		}
	}()

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.HasUniversity() {
		return nil, ErrUniversityRequired
	}

	var imageURL *string
	if input.Image != nil {
		url, err := s.fileStorage.UploadImage(ctx, input.Image.Reader, s.opts.ImageFolder, input.Image.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}
		imageURL = &url
	}

	post := &entity.Post{
		Content:      content,
		ImageURL:     imageURL,
		UserID:       user.ID,
		Username:     user.Username,
		UniversityID: *user.UniversityID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		if imageURL != nil {
			s.deleteImage(ctx, *imageURL)
		}
		return nil, err
	}
	creationFailed = false

	shortName := ""
	if user.University != nil {
		shortName = user.University.ShortName
	}
	resp := postDto.NewPostResponse(post, shortName)

	if err := s.meili.IndexPost(post); err != nil {
		log.Warn().Err(err).Str("post_id", post.ID.String()).Msg("failed to index post")
	}
	if s.feed != nil {
		s.feed.PublishPost(resp)
	}

	return &resp, nil
}

func (s *postService) GetPostByID(ctx context.Context, postID uuid.UUID) (*postDto.PostResponse, error) {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}

	resp := postDto.NewPostResponse(post, s.shortName(ctx, post.UniversityID))
	return &resp, nil
}

func (s *postService) GetAllPosts(ctx context.Context, page dto.Pagination) ([]postDto.PostResponse, error) {
	posts, err := s.postRepo.FindAll(ctx, page.Offset(), page.Limit())
	if err != nil {
		return nil, err
	}
	return s.withShortNames(ctx, posts)
}

func (s *postService) GetPostsByUserID(ctx context.Context, userID uuid.UUID, page dto.Pagination) ([]postDto.PostResponse, error) {
	posts, err := s.postRepo.FindByUserID(ctx, userID, page.Offset(), page.Limit())
	if err != nil {
		return nil, err
	}
	return s.withShortNames(ctx, posts)
}

func (s *postService) GetPostsByUniversityID(ctx context.Context, universityID uuid.UUID, page dto.Pagination) ([]postDto.PostResponse, error) {
	posts, err := s.postRepo.FindByUniversityID(ctx, universityID, page.Offset(), page.Limit())
	if err != nil {
		return nil, err
	}

	shortName := s.shortName(ctx, universityID)
	out := make([]postDto.PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, postDto.NewPostResponse(p, shortName))
	}
	return out, nil
}

func (s *postService) SearchPosts(ctx context.Context, req postDto.SearchPostsRequest) ([]postDto.PostResponse, error) {
	var universityID *uuid.UUID
	if req.UniversityID != "" {
		id, err := uuid.Parse(req.UniversityID)
		if err != nil {
			return nil, apperror.InvalidInput("invalid university id")
		}
		universityID = &id
	}

	ids, err := s.meili.SearchPosts(strings.TrimSpace(req.Query), universityID, req.Offset(), req.Limit())
	if err != nil {
		return nil, err
	}

	// the index may lag behind deletes; FindByIDs skips missing posts
	posts, err := s.postRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.withShortNames(ctx, posts)
}

func (s *postService) DeletePost(ctx context.Context, userID uuid.UUID, postID uuid.UUID) error {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}

	if !entity.IsOwner(post, userID) {
		return ErrNotPostOwner
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		return err
	}

	if post.ImageURL != nil {
		s.deleteImage(ctx, *post.ImageURL)
	}
	if err := s.meili.DeletePost(postID); err != nil {
		log.Warn().Err(err).Str("post_id", postID.String()).Msg("failed to remove post from search index")
	}

	return nil
}

func (s *postService) deleteImage(ctx context.Context, url string) {
	deleted, err := s.fileStorage.DeleteImage(ctx, url, s.opts.ImageFolder)
	if err != nil {
		log.Warn().Err(err).Str("image_url", url).Msg("failed to delete post image")
		return
	}
	if !deleted {
		log.Debug().Str("image_url", url).Msg("post image was already gone")
	}
}

func (s *postService) shortName(ctx context.Context, universityID uuid.UUID) string {
	if universityID == uuid.Nil {
		return ""
	}
	uni, err := s.universityRepo.FindByID(ctx, universityID)
	if err != nil {
		return ""
	}
	return uni.ShortName
}

func (s *postService) withShortNames(ctx context.Context, posts []*entity.Post) ([]postDto.PostResponse, error) {
	shortNames, err := s.universityRepo.ShortNames(ctx, postDto.UniversityIDs(posts))
	if err != nil {
		return nil, err
	}
	return postDto.NewPostResponses(posts, shortNames), nil
}
