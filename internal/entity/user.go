package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                 uuid.UUID `gorm:"size:36;primaryKey"`
	Username           string    `gorm:"size:100;not null"`
	UsernameKey        string    `gorm:"size:100;uniqueIndex;not null"`
	Email              string    `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash       string    `gorm:"size:255;not null"`
	IsAdmin            bool      `gorm:"not null"`
	IsStudent          bool      `gorm:"not null"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	LastLogin          *time.Time
	RefreshToken       *string `gorm:"size:128;index"`
	RefreshTokenExpiry *time.Time
	UniversityID       *uuid.UUID  `gorm:"size:36;index"`
	University         *University `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.UsernameKey = UsernameKey(u.Username)
	return nil
}

// UsernameKey folds a username to the form the unique index compares.
func UsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// HasUniversity reports whether the user picked a university yet.
func (u *User) HasUniversity() bool {
	return u.UniversityID != nil && *u.UniversityID != uuid.Nil
}
