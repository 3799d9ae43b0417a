package dto

import (
	"time"

	postDto "anoa.com/anomologita/internal/modules/post/dto"
	"github.com/google/uuid"
)

type RegisterRequest struct {
	Username        string `json:"username" binding:"required,min=6,max=100"`
	Email           string `json:"email" binding:"required,email,max=255"`
	Password        string `json:"password" binding:"required,min=8,max=100"`
	ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type UpdateUniversityRequest struct {
	UniversityID string `json:"universityId" binding:"required,uuid"`
}

type TokenPair struct {
	AccessToken        string    `json:"accessToken"`
	AccessTokenExpiry  time.Time `json:"accessTokenExpiry"`
	RefreshToken       string    `json:"refreshToken"`
	RefreshTokenExpiry time.Time `json:"refreshTokenExpiry"`
}

type LoginResponse struct {
	TokenPair
	UserID       uuid.UUID  `json:"userId"`
	Username     string     `json:"username"`
	IsAdmin      bool       `json:"isAdmin"`
	IsStudent    bool       `json:"isStudent"`
	UniversityID *uuid.UUID `json:"universityId"`
}

type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	LoginResponse
}

type UserDetailsResponse struct {
	ID                  uuid.UUID              `json:"id"`
	Username            string                 `json:"username"`
	Email               string                 `json:"email"`
	UniversityID        *uuid.UUID             `json:"universityId"`
	UniversityName      *string                `json:"universityName"`
	UniversityShortName *string                `json:"universityShortName"`
	CreatedAt           time.Time              `json:"createdAt"`
	Posts               []postDto.PostResponse `json:"posts"`
}
