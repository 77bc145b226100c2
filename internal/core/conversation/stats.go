package conversation

import (
	"time"

	"github.com/neilberkman/thinkchat/internal/core/models"
)

// Stats summarizes a session collection
type Stats struct {
	TotalSessions  int
	TotalMessages  int
	UserMessages   int
	ModelMessages  int
	ImageRequests  int
	EmptySessions  int
	OldestSession  time.Time
	NewestActivity time.Time

	LongestSessionID    string
	LongestSessionTitle string
	LongestSessionCount int
}

// Summarize computes Stats over sessions. Streaming messages are not counted.
func Summarize(sessions []models.ChatSession) Stats {
	var st Stats
	st.TotalSessions = len(sessions)

	for _, sess := range sessions {
		settled := sess.Settled()
		if len(settled) == 0 {
			st.EmptySessions++
		}
		if len(settled) > st.LongestSessionCount {
			st.LongestSessionID = sess.ID
			st.LongestSessionTitle = sess.Title
			st.LongestSessionCount = len(settled)
		}

		if created := sess.Created(); st.OldestSession.IsZero() || created.Before(st.OldestSession) {
			st.OldestSession = created
		}
		if updated := sess.Updated(); updated.After(st.NewestActivity) {
			st.NewestActivity = updated
		}

		for _, m := range settled {
			st.TotalMessages++
			switch m.Role {
			case models.RoleUser:
				st.UserMessages++
				if Parse(m.Content).Kind == KindImage {
					st.ImageRequests++
				}
			case models.RoleModel:
				st.ModelMessages++
			}
		}
	}
	return st
}
