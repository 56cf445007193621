package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Food post statuses.
const (
	PostStatusAvailable = "available"
	PostStatusReserved  = "reserved"
	PostStatusCompleted = "completed"
	PostStatusExpired   = "expired"
	PostStatusRemoved   = "removed"
)

type FoodPost struct {
	gorm.Model
	OwnerID     uint   `json:"ownerID" gorm:"not null;index"`
	Title       string `json:"title"`
	Description string `json:"description" gorm:"type:text"`
	Category    string `json:"category" gorm:"size:50;index"` // produce, bakery, dairy, meals, pantry, other
	Dietary     string `json:"dietary" gorm:"size:200"`       // JSON array string, e.g. ["vegan","gluten_free"]

	Quantity          int    `json:"quantity"`          // units offered at creation
	RemainingQuantity int    `json:"remainingQuantity"` // derived: quantity minus active claim quantities
	Unit              string `json:"unit" gorm:"size:20"` // portions, kg, items

	CurrentReservations int  `json:"currentReservations"` // derived: count of active claims
	MaxReservations     *int `json:"maxReservations"`     // nil means unlimited

	AddressLine string  `json:"addressLine"`
	City        string  `json:"city"`
	Zip         string  `json:"zip"`
	Country     string  `json:"country"`
	Lat         float32 `json:"lat"`
	Lng         float32 `json:"lng"`

	PickupStart time.Time `json:"pickupStart"`
	PickupEnd   time.Time `json:"pickupEnd"`
	ExpiresAt   time.Time `json:"expiresAt" gorm:"index"`
	Urgency     string    `json:"urgency" gorm:"size:10;index"` // low, medium, high, critical

	Images   string `json:"images"` // JSON array of URLs
	IsActive *bool  `json:"isActive"`
	Status   string `json:"status" gorm:"type:varchar(20);default:'available';index"` // available, reserved, completed, expired, removed

	Claims []Claim `json:"claims"`
	Owner  User    `json:"owner" gorm:"foreignKey:OwnerID;references:ID"`
}

// Custom JSON marshaling to convert the Images string to an array
func (p *FoodPost) MarshalJSON() ([]byte, error) {
	type Alias FoodPost
	aux := &struct {
		Images  []string `json:"images"`
		Dietary []string `json:"dietary"`
		Owner   *User    `json:"owner,omitempty"`
		*Alias
	}{
		Images:  []string{},
		Dietary: []string{},
		Owner:   nil,
		Alias:   (*Alias)(p),
	}

	if p.Images != "" {
		var images []string
		if err := json.Unmarshal([]byte(p.Images), &images); err == nil {
			aux.Images = images
		}
	}

	if p.Dietary != "" {
		var dietary []string
		if err := json.Unmarshal([]byte(p.Dietary), &dietary); err == nil {
			aux.Dietary = dietary
		}
	}

	// Only include owner if it has been loaded, and strip its posts to
	// avoid a circular reference
	if p.Owner.ID > 0 {
		ownerCopy := p.Owner
		ownerCopy.FoodPosts = nil
		aux.Owner = &ownerCopy
	}

	return json.Marshal(aux)
}
