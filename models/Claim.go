package models

import (
	"time"

	"gorm.io/gorm"
)

// Claim statuses. A claim is "active" (counts against post capacity) while
// pending or confirmed; the other three are terminal.
const (
	ClaimStatusPending   = "pending"
	ClaimStatusConfirmed = "confirmed"
	ClaimStatusPickedUp  = "picked_up"
	ClaimStatusCancelled = "cancelled"
	ClaimStatusExpired   = "expired"
)

// Claim models one user's reservation against a food post's available
// quantity.
type Claim struct {
	gorm.Model
	FoodPostID uint      `json:"foodPostID" gorm:"not null;index"`
	ClaimantID uint      `json:"claimantID" gorm:"not null;index"`
	Quantity   int       `json:"quantity"`
	PickupDate time.Time `json:"pickupDate"`
	Urgent     bool      `json:"urgent"`
	Note       string    `json:"note" gorm:"size:500"`
	Status     string    `json:"status" gorm:"type:varchar(20);default:'pending';index"`

	PickedUpAt       *time.Time `json:"pickedUpAt"`
	EcoPointsAwarded int        `json:"ecoPointsAwarded"`

	// Set at most once, after pickup
	Rating     *int       `json:"rating" gorm:"check:rating IS NULL OR (rating >= 1 AND rating <= 5)"`
	Review     string     `json:"review" gorm:"type:text"`
	ReviewedAt *time.Time `json:"reviewedAt"`

	FoodPost *FoodPost `json:"foodPost,omitempty" gorm:"foreignKey:FoodPostID"`
	Claimant *User     `json:"claimant,omitempty" gorm:"foreignKey:ClaimantID"`
}

// IsActive reports whether the claim still counts against the post's
// capacity.
func (c *Claim) IsActive() bool {
	return c.Status == ClaimStatusPending || c.Status == ClaimStatusConfirmed
}

// IsTerminal reports whether the claim can never transition again.
func (c *Claim) IsTerminal() bool {
	switch c.Status {
	case ClaimStatusPickedUp, ClaimStatusCancelled, ClaimStatusExpired:
		return true
	}
	return false
}
