package models

import (
	"time"
)

// Timestamps adds GORM auto-times. Attendance records are never hard-deleted,
// so there is intentionally no DeletedAt here.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
