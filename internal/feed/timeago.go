package feed

import (
	"time"

	"marketplace/internal/models"

	"github.com/dustin/go-humanize"
)

// TimeAgo renders t relative to now as "just now", "5 minutes ago",
// "2 hours ago" and so on. Timestamps in the future read as "just now".
func TimeAgo(t, now time.Time) string {
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Age is TimeAgo for a listing's creation time.
func Age(l models.Listing, now time.Time) string {
	return TimeAgo(l.CreatedAt, now)
}
