package services

import (
	"log"
	"math/rand"

	"event-checkin-system/models"

	"gorm.io/gorm"
)

const (
	joinCodeLength       = 5
	completionCodeLength = 10

	joinCodeDigits      = "0123456789"
	completionCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// CodeGenerator mints short user-facing attendance codes. Candidates are
// retried until they miss every live (non-cancelled, non-expired) code; the
// live collision space is small, so retries are expected to be rare but the
// loop is deliberately unbounded. warnAfter only controls when retry storms
// start getting logged.
type CodeGenerator struct {
	DB        *gorm.DB
	warnAfter int
}

func NewCodeGenerator(db *gorm.DB) *CodeGenerator {
	return &CodeGenerator{DB: db, warnAfter: 50}
}

func randomCode(alphabet string, length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// NextJoinCode returns a 5-digit code unique among live join codes.
// Run it on the transaction that inserts the record so the partial unique
// index backs up the read-then-write.
func (g *CodeGenerator) NextJoinCode(tx *gorm.DB) (string, error) {
	for attempt := 1; ; attempt++ {
		code := randomCode(joinCodeDigits, joinCodeLength)

		var count int64
		err := tx.Model(&models.EventParticipation{}).
			Where("join_code = ? AND status NOT IN ?", code,
				[]models.ParticipationStatus{models.StatusCancelled, models.StatusExpired}).
			Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
		if attempt%g.warnAfter == 0 {
			log.Printf("⚠️  join code collision streak: %d attempts", attempt)
		}
	}
}

// NextCompletionCode returns a 10-character code unique among completion
// codes on non-cancelled records.
func (g *CodeGenerator) NextCompletionCode(tx *gorm.DB) (string, error) {
	for attempt := 1; ; attempt++ {
		code := randomCode(completionCodeChars, completionCodeLength)

		var count int64
		err := tx.Model(&models.EventParticipation{}).
			Where("completion_code = ? AND status <> ?", code, models.StatusCancelled).
			Count(&count).Error
		if err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
		if attempt%g.warnAfter == 0 {
			log.Printf("⚠️  completion code collision streak: %d attempts", attempt)
		}
	}
}
