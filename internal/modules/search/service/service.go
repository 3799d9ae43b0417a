package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"anoa.com/anomologita/internal/entity"
	"anoa.com/anomologita/pkg/apperror"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog/log"
)

const postsIndex = "posts"

var ErrSearchDisabled = apperror.New(http.StatusServiceUnavailable, "search is not available", apperror.ErrUnavailable)

type MeiliSearchService interface {
	IndexPost(post *entity.Post) error
	DeletePost(id uuid.UUID) error
	// SearchPosts returns matching post ids, best match first.
	SearchPosts(query string, universityID *uuid.UUID, offset, limit int) ([]uuid.UUID, error)
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
}

func NewMeiliSearchService(client meilisearch.ServiceManager) MeiliSearchService {
	s := &meiliSearchService{
		client:    client,
		sanitizer: bluemonday.StrictPolicy(),
	}
	s.initIndexes()
	return s
}

func (s *meiliSearchService) initIndexes() {
	filterable := []any{"university_id", "user_id"}
	if _, err := s.client.Index(postsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		log.Warn().Err(err).Msg("failed to update posts filterable attributes")
	}

	sortable := []string{"created_at"}
	if _, err := s.client.Index(postsIndex).UpdateSortableAttributes(&sortable); err != nil {
		log.Warn().Err(err).Msg("failed to update posts sortable attributes")
	}

	log.Info().Msg("meilisearch indexes initialized")
}

type postDoc struct {
	ID           string `json:"id"`
	Content      string `json:"content"`
	Username     string `json:"username"`
	UserID       string `json:"user_id"`
	UniversityID string `json:"university_id"`
	CreatedAt    int64  `json:"created_at"`
}

func newPostDoc(p *entity.Post, clean func(string) string) postDoc {
	return postDoc{
		ID:           p.ID.String(),
		Content:      clean(p.Content),
		Username:     p.Username,
		UserID:       p.UserID.String(),
		UniversityID: p.UniversityID.String(),
		CreatedAt:    p.CreatedAt.Unix(),
	}
}

// CleanContent strips markup and collapses whitespace.
func CleanContent(policy *bluemonday.Policy, content string) string {
	content = strings.ReplaceAll(content, "<br>", " ")
	content = strings.ReplaceAll(content, "</p>", " ")
	clean := html.UnescapeString(policy.Sanitize(content))
	return strings.Join(strings.Fields(clean), " ")
}

func (s *meiliSearchService) clean(content string) string {
	return CleanContent(s.sanitizer, content)
}

func (s *meiliSearchService) IndexPost(post *entity.Post) error {
	doc := newPostDoc(post, s.clean)
	task, err := s.client.Index(postsIndex).AddDocuments([]postDoc{doc}, strPtr("id"))
	if err != nil {
		return err
	}
	log.Debug().Str("post_id", doc.ID).Int64("task_uid", task.TaskUID).Msg("post indexed")
	return nil
}

func (s *meiliSearchService) DeletePost(id uuid.UUID) error {
	_, err := s.client.Index(postsIndex).DeleteDocument(id.String())
	return err
}

type searchHits struct {
	Hits []struct {
		ID string `json:"id"`
	} `json:"hits"`
}

func (s *meiliSearchService) SearchPosts(query string, universityID *uuid.UUID, offset, limit int) ([]uuid.UUID, error) {
	req := &meilisearch.SearchRequest{
		Offset:               int64(offset),
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	}
	if f := UniversityFilter(universityID); f != "" {
		req.Filter = f
	}

	raw, err := s.client.Index(postsIndex).SearchRaw(query, req)
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	if raw == nil {
		return nil, nil
	}

	var res searchHits
	if err := json.Unmarshal(*raw, &res); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return parseHitIDs(res), nil
}

func parseHitIDs(res searchHits) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// UniversityFilter builds the meilisearch filter expression for an
// optional university.
func UniversityFilter(universityID *uuid.UUID) string {
	if universityID == nil || *universityID == uuid.Nil {
		return ""
	}
	return fmt.Sprintf("university_id = %q", universityID.String())
}

type disabledSearch struct{}

// Disabled is used when no meilisearch host is configured. Indexing is a
// no-op and searching fails with ErrSearchDisabled.
func Disabled() MeiliSearchService {
	return disabledSearch{}
}

func (disabledSearch) IndexPost(*entity.Post) error { return nil }
func (disabledSearch) DeletePost(uuid.UUID) error   { return nil }
func (disabledSearch) SearchPosts(string, *uuid.UUID, int, int) ([]uuid.UUID, error) {
	return nil, ErrSearchDisabled
}

// IsDisabled reports whether err came from a search backend that is not
// configured.
func IsDisabled(err error) bool {
	return errors.Is(err, ErrSearchDisabled)
}

func strPtr(s string) *string {
	return &s
}
