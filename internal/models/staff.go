package models

import "time"

type Language string

const (
	LanguagePersian  Language = "fa"
	LanguageFinglish Language = "en"
)

// Staff is the operational profile attached to a user account. The telegram
// fields are the durable bot-link state.
type Staff struct {
	ID                 uint     `gorm:"primaryKey"`
	UserID             uint     `gorm:"not null;uniqueIndex"`
	User               User     `gorm:"constraint:OnDelete:CASCADE"`
	TelegramToken      string   `gorm:"size:64;not null;uniqueIndex"`
	TelegramID         *string  `gorm:"size:64;uniqueIndex"`
	LanguagePreference Language `gorm:"size:8;not null;default:'fa'"`
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Assignments []StaffBranchAssignment
}

type StaffBranchAssignment struct {
	ID        uint   `gorm:"primaryKey"`
	StaffID   uint   `gorm:"not null;uniqueIndex:ux_staff_branch"`
	Staff     Staff  `gorm:"constraint:OnDelete:CASCADE"`
	BranchID  uint   `gorm:"not null;uniqueIndex:ux_staff_branch;index"`
	Branch    Branch `gorm:"constraint:OnDelete:CASCADE"`
	IsPrimary bool   `gorm:"not null;default:false"`
	IsActive  bool   `gorm:"not null"` // set explicitly, see Branch.IsActive
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StaffShift is open while EndedAt is nil. A staff member has at most one open
// shift (partial unique index created in database.Migrate).
type StaffShift struct {
	ID        uint       `gorm:"primaryKey"`
	StaffID   uint       `gorm:"not null;index"`
	Staff     Staff      `gorm:"constraint:OnDelete:CASCADE"`
	BranchID  uint       `gorm:"not null;index"`
	Branch    Branch     `gorm:"constraint:OnDelete:CASCADE"`
	StartedAt time.Time  `gorm:"not null"`
	EndedAt   *time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *StaffShift) IsOpen() bool { return s.EndedAt == nil }
