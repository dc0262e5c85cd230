package workers

import (
	"context"
	"log"
	"time"

	"event-checkin-system/services"
)

// PollOverdueLeaderboards is the safety net behind the 00:10 cron job. If the
// process was down across midnight, the cron trigger is gone until tomorrow;
// this loop keeps sweeping so ended events still get their leaderboards
// finalized within one poll interval.
func PollOverdueLeaderboards(ctx context.Context, leaderboards *services.LeaderboardService, pollInterval time.Duration) {
	log.Println("Starting overdue leaderboard polling...")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Leaderboard polling stopped.")
			return
		case <-ticker.C:
			finalized, err := leaderboards.FinalizeDueEvents(ctx)
			if err != nil {
				log.Printf("❌ Error finalizing overdue leaderboards: %v", err)
				continue
			}
			if finalized > 0 {
				log.Printf("🏁 Finalized %d overdue leaderboard(s).", finalized)
			}
		}
	}
}
