package models

import (
	"time"
)

// EventType distinguishes one-shot events from multi-day campaigns.
type EventType string

const (
	EventTypeSingleDay EventType = "single_day"
	EventTypeMultiDay  EventType = "multi_day"
)

// Event is owned by the organizer tooling; this service only reads it.
type Event struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	EventType   EventType `json:"event_type" gorm:"type:varchar(16);default:'single_day';not null;index"`

	StartsAt time.Time  `json:"starts_at" gorm:"not null"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`

	Location        string `json:"location,omitempty" gorm:"size:500"`
	DistanceKM      *int   `json:"distance_km,omitempty"`
	MaxParticipants *int   `json:"max_participants,omitempty"`

	// Multi-day settings
	AllowDailyCheckin  bool `json:"allow_daily_checkin" gorm:"default:false"`
	MaxCheckinsPerUser *int `json:"max_checkins_per_user,omitempty"`

	BannerImageURL string `json:"banner_image_url,omitempty" gorm:"type:text"`

	IsActive    bool `json:"is_active" gorm:"default:true"`
	IsPublished bool `json:"is_published" gorm:"default:false"`

	CreatedBy string `json:"created_by" gorm:"type:uuid"`

	Timestamps
}

func (e *Event) IsMultiDay() bool {
	return e.EventType == EventTypeMultiDay
}

// EndDate returns the closing timestamp of the event, falling back to the
// start for events without an explicit end.
func (e *Event) EndDate() time.Time {
	if e.EndsAt != nil {
		return *e.EndsAt
	}
	return e.StartsAt
}

// RunsOn reports whether the given day token falls within the event's
// [start date, end date] as seen from loc.
func (e *Event) RunsOn(day time.Time, loc *time.Location) bool {
	start := DayOf(e.StartsAt, loc)
	end := DayOf(e.EndDate(), loc)
	return !day.Before(start) && !day.After(end)
}

// DayOf normalizes a timestamp to its calendar day in loc. Day tokens are
// stored as midnight UTC so that equality and ordering work across drivers.
func DayOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
