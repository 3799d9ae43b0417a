package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Post keeps a copy of the author's username and university as they were
// when the post was written.
type Post struct {
	ID           uuid.UUID `gorm:"size:36;primaryKey"`
	Content      string    `gorm:"type:text;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index"`
	ImageURL     *string   `gorm:"type:text"`
	UserID       uuid.UUID `gorm:"size:36;not null;index"`
	User         *User     `gorm:"constraint:OnDelete:CASCADE"`
	Username     string    `gorm:"size:100;not null"`
	UniversityID uuid.UUID `gorm:"size:36;not null;index"`
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		p.ID = id
	}
	return nil
}

func (p *Post) OwnerID() uuid.UUID {
	if p == nil {
		return uuid.Nil
	}
	return p.UserID
}
