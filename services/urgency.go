package services

import (
	"ediens-server/models"
	"time"

	"gorm.io/gorm"
)

// Urgency tiers for a food post, derived from time remaining until expiry.
const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

// UrgencyTier buckets the time left before expiresAt.
func UrgencyTier(expiresAt, now time.Time) string {
	left := expiresAt.Sub(now)
	switch {
	case left <= 2*time.Hour:
		return UrgencyCritical
	case left <= 6*time.Hour:
		return UrgencyHigh
	case left <= 24*time.Hour:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// RefreshUrgency recomputes the stored urgency tier for a post and persists
// it when it changed. Expired posts are flipped to expired unless they are
// already terminal.
func RefreshUrgency(db *gorm.DB, post *models.FoodPost) {
	now := time.Now()
	if now.After(post.ExpiresAt) {
		if post.Status == models.PostStatusAvailable || post.Status == models.PostStatusReserved {
			post.Status = models.PostStatusExpired
			db.Model(post).Updates(map[string]interface{}{"status": post.Status, "urgency": UrgencyCritical})
		}
		post.Urgency = UrgencyCritical
		return
	}

	tier := UrgencyTier(post.ExpiresAt, now)
	if tier != post.Urgency {
		post.Urgency = tier
		db.Model(post).Update("urgency", tier)
	}
}

// RefreshUrgencyAll applies RefreshUrgency to a loaded slice.
func RefreshUrgencyAll(db *gorm.DB, posts []models.FoodPost) {
	for i := range posts {
		RefreshUrgency(db, &posts[i])
	}
}
