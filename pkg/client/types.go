package client

import (
	"time"

	"github.com/google/uuid"
)

type Page struct {
	PageNumber int
	PageSize   int
}

type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type AuthResponse struct {
	Success            bool       `json:"success,omitempty"`
	Message            string     `json:"message,omitempty"`
	UserID             uuid.UUID  `json:"userId"`
	Username           string     `json:"username"`
	IsAdmin            bool       `json:"isAdmin"`
	IsStudent          bool       `json:"isStudent"`
	UniversityID       *uuid.UUID `json:"universityId"`
	AccessToken        string     `json:"accessToken"`
	AccessTokenExpiry  time.Time  `json:"accessTokenExpiry"`
	RefreshToken       string     `json:"refreshToken"`
	RefreshTokenExpiry time.Time  `json:"refreshTokenExpiry"`
}

type tokenPair struct {
	AccessToken        string    `json:"accessToken"`
	AccessTokenExpiry  time.Time `json:"accessTokenExpiry"`
	RefreshToken       string    `json:"refreshToken"`
	RefreshTokenExpiry time.Time `json:"refreshTokenExpiry"`
}

type Post struct {
	ID                  uuid.UUID `json:"id"`
	Content             string    `json:"content"`
	CreatedAt           time.Time `json:"createdAt"`
	ImageURL            *string   `json:"imageUrl"`
	UserID              uuid.UUID `json:"userId"`
	Username            string    `json:"username"`
	UniversityID        uuid.UUID `json:"universityId"`
	UniversityShortName string    `json:"universityShortName,omitempty"`
}

type Comment struct {
	ID           uuid.UUID  `json:"id"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt"`
	UserID       uuid.UUID  `json:"userId"`
	Username     string     `json:"username"`
	PostID       uuid.UUID  `json:"postId"`
	UniversityID uuid.UUID  `json:"universityId"`
}

type University struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"shortName"`
	Location  string    `json:"location"`
	Website   string    `json:"website"`
}

type UserDetails struct {
	ID                  uuid.UUID  `json:"id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	UniversityID        *uuid.UUID `json:"universityId"`
	UniversityName      *string    `json:"universityName"`
	UniversityShortName *string    `json:"universityShortName"`
	CreatedAt           time.Time  `json:"createdAt"`
	Posts               []Post     `json:"posts"`
}
