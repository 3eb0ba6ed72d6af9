package models

import "time"

type Branch struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;not null;unique"`
	Code      string `gorm:"size:50;not null;uniqueIndex"` // slug, e.g. "beresht"
	Address   string `gorm:"size:255"`
	IsActive  bool   `gorm:"not null;index"` // no gorm default, or Create turns false into true
	CreatedAt time.Time
	UpdatedAt time.Time
}
