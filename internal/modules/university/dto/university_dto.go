package dto

import (
	"anoa.com/anomologita/internal/entity"
	"github.com/google/uuid"
)

type CreateUniversityRequest struct {
	Name      string `json:"name" binding:"required,max=255"`
	ShortName string `json:"shortName" binding:"required,max=50"`
	Location  string `json:"location" binding:"omitempty,max=255"`
	Website   string `json:"website" binding:"omitempty,url,max=255"`
}

type UniversityResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"shortName"`
	Location  string    `json:"location,omitempty"`
	Website   string    `json:"website,omitempty"`
}

func NewUniversityResponse(u *entity.University) UniversityResponse {
	return UniversityResponse{
		ID:        u.ID,
		Name:      u.Name,
		ShortName: u.ShortName,
		Location:  u.Location,
		Website:   u.Website,
	}
}
