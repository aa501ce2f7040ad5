package service

import (
	"fmt"
	"time"

	"github.com/nurpe/cnc-service/internal/model"
)

// SessionMinutes is the whole minutes between start and finish, or now while
// the session is open. Pauses are not subtracted.
func SessionMinutes(session model.Session, now time.Time) int {
	end := now
	if session.FinishedAt != nil {
		end = *session.FinishedAt
	}
	elapsed := end.Sub(session.StartedAt)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Minute)
}

func FormatDuration(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	hours := minutes / 60
	mins := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
