package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type University struct {
	ID        uuid.UUID `gorm:"size:36;primaryKey"`
	Name      string    `gorm:"size:255;not null;index"`
	ShortName string    `gorm:"size:50"`
	Location  string    `gorm:"size:255"`
	Website   string    `gorm:"size:255"`
}

func (u *University) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
