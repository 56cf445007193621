package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FirstName           string         `json:"firstName"`
	LastName            string         `json:"lastName"`
	Email               string         `json:"email" gorm:"uniqueIndex"`
	PhoneNumber         string         `json:"phoneNumber"`
	Password            string         `json:"password"`
	SocialLogin         bool           `json:"socialLogin"`
	SocialProvider      string         `json:"socialProvider"`
	AvatarURL           string         `json:"avatarURL"`
	Bio                 string         `json:"bio"`
	Languages           datatypes.JSON `json:"languages"`
	FoodPosts           []FoodPost     `json:"foodPosts" gorm:"foreignKey:OwnerID;references:ID"`
	SavedPosts          datatypes.JSON `json:"savedPosts"`
	PushTokens          datatypes.JSON `json:"pushTokens"`
	AllowsNotifications *bool          `json:"allowsNotifications"`
	EcoPoints           int            `json:"ecoPoints" gorm:"default:0"`
	Rating              float32        `json:"rating"`      // running average across received claim ratings
	RatingCount         int            `json:"ratingCount"` // how many ratings the average is built from
	Role                string         `json:"role" gorm:"type:varchar(20);default:user;index"` // user, admin
}

// Custom JSON marshaling to expand the JSON columns into arrays
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		Languages  []string `json:"languages,omitempty"`
		SavedPosts []int    `json:"savedPosts,omitempty"`
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		Languages:  []string{},
		SavedPosts: []int{},
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.Languages != nil {
		var languages []string
		if err := json.Unmarshal(u.Languages, &languages); err == nil {
			aux.Languages = languages
		}
	}

	if u.SavedPosts != nil {
		var savedPosts []int
		if err := json.Unmarshal(u.SavedPosts, &savedPosts); err == nil {
			aux.SavedPosts = savedPosts
		}
	}

	if u.PushTokens != nil {
		var pushTokens []string
		if err := json.Unmarshal(u.PushTokens, &pushTokens); err == nil {
			aux.PushTokens = pushTokens
		}
	}

	// Note: FoodPosts field is excluded to prevent circular reference

	return json.Marshal(aux)
}
