package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Comment struct {
	ID           uuid.UUID `gorm:"size:36;primaryKey"`
	Content      string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"index"`
	UpdatedAt    *time.Time
	UserID       uuid.UUID `gorm:"size:36;not null;index"`
	User         *User     `gorm:"constraint:OnDelete:RESTRICT"`
	PostID       uuid.UUID `gorm:"size:36;not null;index"`
	Post         *Post     `gorm:"constraint:OnDelete:CASCADE"`
	Username     string    `gorm:"size:100;not null"`
	UniversityID uuid.UUID `gorm:"size:36;not null"`
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		c.ID = id
	}
	return nil
}

func (c *Comment) OwnerID() uuid.UUID {
	if c == nil {
		return uuid.Nil
	}
	return c.UserID
}
