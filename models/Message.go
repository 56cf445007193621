package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation groups the messages two users exchange while coordinating a
// pickup. It is usually anchored to a claim but survives the claim becoming
// terminal.
type Conversation struct {
	gorm.Model
	OwnerID    uint      `json:"ownerID" gorm:"index"`
	ClaimantID uint      `json:"claimantID" gorm:"index"`
	ClaimID    *uint     `json:"claimID" gorm:"index"`
	Messages   []Message `json:"messages"`
	Owner      *User     `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Claimant   *User     `json:"claimant,omitempty" gorm:"foreignKey:ClaimantID"`
}

type Message struct {
	gorm.Model
	ConversationID uint
	SenderID       uint   `json:"senderID"`
	ReceiverID     uint   `json:"receiverID"`
	Text           string `json:"text"`
	// Optional typed payload for rich messages (e.g., food post card)
	Type            string `json:"type" gorm:"size:32"` // text | post_card
	PreviewTitle    string `json:"previewTitle" gorm:"size:256"`
	PreviewSubtitle string `json:"previewSubtitle" gorm:"size:256"`
	PreviewImageURL string `json:"previewImageURL" gorm:"size:512"`
	RefType         string `json:"refType" gorm:"size:32"` // food_post
	RefID           *uint  `json:"refID" gorm:"index"`
	// Delivery state
	State       string     `json:"state" gorm:"size:16;index"` // sent|delivered|seen
	DeliveredAt *time.Time `json:"deliveredAt"`
	SeenAt      *time.Time `json:"seenAt"`
}
