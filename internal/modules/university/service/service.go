package university

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"anoa.com/anomologita/internal/entity"
	"anoa.com/anomologita/internal/modules/university/dto"
	"anoa.com/anomologita/internal/modules/university/repository"
	"anoa.com/anomologita/pkg/apperror"
	commonDto "anoa.com/anomologita/pkg/dto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	cacheTTL    = 10 * time.Minute
	cachePrefix = "universities:page:"
)

var ErrUniversityExists = apperror.New(http.StatusConflict, "University already exists.", nil)

type UniversityService interface {
	GetAll(ctx context.Context, page commonDto.Pagination) ([]dto.UniversityResponse, error)
	CreateUniversity(ctx context.Context, req dto.CreateUniversityRequest) (*dto.UniversityResponse, error)
}

type universityService struct {
	repo  repository.UniversityRepository
	redis *redis.Client
}

// NewUniversityService caches pages in redis when rdb is non-nil.
func NewUniversityService(repo repository.UniversityRepository, rdb *redis.Client) UniversityService {
	return &universityService{repo: repo, redis: rdb}
}

func cacheKey(page commonDto.Pagination) string {
	return fmt.Sprintf("%s%d:%d", cachePrefix, page.PageNumber, page.PageSize)
}

func (s *universityService) GetAll(ctx context.Context, page commonDto.Pagination) ([]dto.UniversityResponse, error) {
	page = page.Normalize()

	if cached, ok := s.fromCache(ctx, page); ok {
		return cached, nil
	}

	universities, err := s.repo.FindAll(ctx, page.Offset(), page.Limit())
	if err != nil {
		return nil, err
	}

	out := make([]dto.UniversityResponse, 0, len(universities))
	for _, u := range universities {
		out = append(out, dto.NewUniversityResponse(u))
	}

	s.toCache(ctx, page, out)
	return out, nil
}

func (s *universityService) CreateUniversity(ctx context.Context, req dto.CreateUniversityRequest) (*dto.UniversityResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.InvalidInput("University name is required.")
	}

	exists, err := s.repo.ExistsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUniversityExists
	}

	university := &entity.University{
		Name:      name,
		ShortName: strings.TrimSpace(req.ShortName),
		Location:  strings.TrimSpace(req.Location),
		Website:   strings.TrimSpace(req.Website),
	}
	if err := s.repo.Create(ctx, university); err != nil {
		return nil, err
	}

	s.invalidateCache(ctx)

	resp := dto.NewUniversityResponse(university)
	return &resp, nil
}

func (s *universityService) fromCache(ctx context.Context, page commonDto.Pagination) ([]dto.UniversityResponse, bool) {
	if s.redis == nil {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, cacheKey(page)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("university cache read failed")
		}
		return nil, false
	}

	var out []dto.UniversityResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (s *universityService) toCache(ctx context.Context, page commonDto.Pagination, list []dto.UniversityResponse) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(page), raw, cacheTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("university cache write failed")
	}
}

// invalidateCache drops every cached page; a new university can shift
// all of them.
func (s *universityService) invalidateCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	iter := s.redis.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.redis.Del(ctx, iter.Val()).Err(); err != nil {
			log.Warn().Err(err).Str("key", iter.Val()).Msg("university cache invalidation failed")
		}
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("university cache scan failed")
	}
}
