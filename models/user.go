package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent   UserRole = "student"
	RoleOfficer   UserRole = "officer"
	RoleStaff     UserRole = "staff"
	RoleOrganizer UserRole = "organizer"
)

// User is a single flat row carrying a role tag plus role-specific optional
// columns, instead of table-per-role subtypes.
type User struct {
	ID    string   `json:"id" gorm:"primaryKey;type:uuid"`
	Email string   `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Role  UserRole `json:"role" gorm:"type:varchar(16);not null;index"`

	Title     string `json:"title,omitempty" gorm:"size:50"`
	FirstName string `json:"first_name" gorm:"size:255;not null"`
	LastName  string `json:"last_name" gorm:"size:255;not null"`

	// Student-specific
	StudentID *string `json:"student_id,omitempty" gorm:"size:20;uniqueIndex"`
	Major     string  `json:"major,omitempty" gorm:"size:255"`
	Faculty   string  `json:"faculty,omitempty" gorm:"size:255"`

	// Officer-specific
	Department string `json:"department,omitempty" gorm:"size:255"`

	IsVerified bool `json:"is_verified" gorm:"default:false"`

	Timestamps
}

// CanVerify reports whether the role may check participants in and approve
// or reject proof submissions.
func (u *User) CanVerify() bool {
	return u.Role == RoleStaff || u.Role == RoleOrganizer
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	return nil
}

// NewID mints a uuid primary key. Kept here so models created directly in
// tests get IDs without touching service code.
func NewID() string {
	return uuid.NewString()
}
