package dto

import (
	"time"

	"anoa.com/anomologita/internal/entity"
	"github.com/google/uuid"
)

type CreateCommentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=500"`
	PostID  string `json:"postId" binding:"required,uuid"`
}

type CommentResponse struct {
	ID           uuid.UUID  `json:"id"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt"`
	UserID       uuid.UUID  `json:"userId"`
	Username     string     `json:"username"`
	PostID       uuid.UUID  `json:"postId"`
	UniversityID uuid.UUID  `json:"universityId"`
}

func NewCommentResponse(c *entity.Comment) CommentResponse {
	return CommentResponse{
		ID:           c.ID,
		Content:      c.Content,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		UserID:       c.UserID,
		Username:     c.Username,
		PostID:       c.PostID,
		UniversityID: c.UniversityID,
	}
}
