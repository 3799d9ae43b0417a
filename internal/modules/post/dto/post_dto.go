package dto

import (
	"io"
	"mime/multipart"
	"time"

	"anoa.com/anomologita/internal/entity"
	commonDto "anoa.com/anomologita/pkg/dto"
	"github.com/google/uuid"
)

// CreatePostRequest is bound from a multipart form.
type CreatePostRequest struct {
	Content   string                `form:"content" binding:"required,min=1,max=500"`
	ImageFile *multipart.FileHeader `form:"imageFile"`
}

// ImageFile is an uploaded image handed to the service.
type ImageFile struct {
	Reader   io.Reader
	FileName string
}

type CreatePostInput struct {
	Content string
	Image   *ImageFile
}

type SearchPostsRequest struct {
	Query        string `form:"q" binding:"required,max=200"`
	UniversityID string `form:"universityId" binding:"omitempty,uuid"`
	commonDto.Pagination
}

type PostResponse struct {
	ID                  uuid.UUID `json:"id"`
	Content             string    `json:"content"`
	CreatedAt           time.Time `json:"createdAt"`
	ImageURL            *string   `json:"imageUrl"`
	UserID              uuid.UUID `json:"userId"`
	Username            string    `json:"username"`
	UniversityID        uuid.UUID `json:"universityId"`
	UniversityShortName string    `json:"universityShortName,omitempty"`
}

// NewPostResponse maps a stored post. Username and universityId are the
// values captured when the post was written.
func NewPostResponse(p *entity.Post, universityShortName string) PostResponse {
	return PostResponse{
		ID:                  p.ID,
		Content:             p.Content,
		CreatedAt:           p.CreatedAt,
		ImageURL:            p.ImageURL,
		UserID:              p.UserID,
		Username:            p.Username,
		UniversityID:        p.UniversityID,
		UniversityShortName: universityShortName,
	}
}

// NewPostResponses maps posts using a universityId -> short name lookup.
func NewPostResponses(posts []*entity.Post, shortNames map[uuid.UUID]string) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, NewPostResponse(p, shortNames[p.UniversityID]))
	}
	return out
}

// UniversityIDs returns the distinct university ids referenced by posts.
func UniversityIDs(posts []*entity.Post) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(posts))
	var ids []uuid.UUID
	for _, p := range posts {
		if p.UniversityID == uuid.Nil {
			continue
		}
		if _, ok := seen[p.UniversityID]; ok {
			continue
		}
		seen[p.UniversityID] = struct{}{}
		ids = append(ids, p.UniversityID)
	}
	return ids
}
