package utils

import (
	"log"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
)

// ReferenceClock is the single source of "now" and "today" for the whole
// service, pinned to one named timezone so that day boundaries and cron
// triggers agree regardless of where a caller sits. The embedded clockwork
// clock is swapped for a fake one in tests.
type ReferenceClock struct {
	clockwork.Clock
	Location *time.Location
}

func NewReferenceClock(clk clockwork.Clock, loc *time.Location) *ReferenceClock {
	return &ReferenceClock{Clock: clk, Location: loc}
}

// LoadReferenceClock builds the production clock from the REFERENCE_TZ env
// var, defaulting to UTC.
func LoadReferenceClock() *ReferenceClock {
	tz := os.Getenv("REFERENCE_TZ")
	if tz == "" {
		log.Println("⚠️  REFERENCE_TZ not set, defaulting to UTC")
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Fatalf("invalid REFERENCE_TZ %q: %v", tz, err)
	}
	return NewReferenceClock(clockwork.NewRealClock(), loc)
}

// Today returns the current calendar day in the reference timezone as a
// midnight-UTC day token (the canonical form stored in checkin_date).
func (c *ReferenceClock) Today() time.Time {
	y, m, d := c.Now().In(c.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayOf normalizes an arbitrary timestamp to its reference-timezone day token.
func (c *ReferenceClock) DayOf(t time.Time) time.Time {
	y, m, d := t.In(c.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartOfDay returns midnight of the given day token in the reference
// timezone.
func (c *ReferenceClock) StartOfDay(day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.Location)
}

// EndOfDay returns the last instant of the given day token in the reference
// timezone; daily codes expire at this moment.
func (c *ReferenceClock) EndOfDay(day time.Time) time.Time {
	y, m, d := day.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, c.Location)
}
