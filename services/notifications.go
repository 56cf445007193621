package services

import (
	"ediens-server/models"
	"ediens-server/storage"
	"ediens-server/utils"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// NotificationService is the relay between claim lifecycle events and the
// users on the other end: it persists Notification rows and forwards push
// messages. It holds no durable state of its own.
type NotificationService struct{}

func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotificationData is the structured payload carried by every relayed event.
type NotificationData struct {
	Type    string `json:"type"`
	ClaimID string `json:"claimId,omitempty"`
	PostID  string `json:"postId,omitempty"`
	ActorID string `json:"actorId,omitempty"`
	Status  string `json:"newStatus,omitempty"`
	// Deep linking data
	Screen string `json:"screen"`
	Params string `json:"params"`
	Action string `json:"action,omitempty"`
}

// getUserPushTokens retrieves all push tokens for a user
func (ns *NotificationService) getUserPushTokens(userID uint) ([]string, error) {
	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("user not found: %v", err)
	}

	if user.AllowsNotifications == nil || !*user.AllowsNotifications || user.PushTokens == nil {
		return nil, fmt.Errorf("user has notifications disabled or no tokens")
	}

	var tokens []string
	if err := json.Unmarshal(user.PushTokens, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal push tokens: %v", err)
	}

	return tokens, nil
}

// SendNotificationToUser pushes a message to every registered device of a user
func (ns *NotificationService) SendNotificationToUser(userID uint, title, body string, data NotificationData) error {
	tokens, err := ns.getUserPushTokens(userID)
	if err != nil {
		log.Printf("Failed to get push tokens for user %d: %v", userID, err)
		return err
	}

	dataMap := map[string]string{
		"type":      data.Type,
		"claimId":   data.ClaimID,
		"postId":    data.PostID,
		"actorId":   data.ActorID,
		"newStatus": data.Status,
		"screen":    data.Screen,
		"params":    data.Params,
	}

	var lastError error
	for _, token := range tokens {
		if err := utils.SendNotification(token, title, body, dataMap); err != nil {
			log.Printf("Failed to send notification to token %s: %v", token, err)
			lastError = err
		}
	}

	return lastError
}

// persist writes the in-app notification row backing the push message.
func (ns *NotificationService) persist(userID uint, typ, title, message, refType string, refID uint) {
	notification := models.Notification{
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		RefType: refType,
		RefID:   refID,
		IsRead:  false,
	}
	if err := storage.DB.Create(&notification).Error; err != nil {
		log.Printf("Failed to persist notification for user %d: %v", userID, err)
	}
}

// NotifyClaimCreated tells the post owner a new claim was opened.
func (ns *NotificationService) NotifyClaimCreated(claim *models.Claim) error {
	if claim.FoodPost == nil {
		return nil
	}
	post := claim.FoodPost

	claimantName := "Someone"
	if claim.Claimant != nil {
		claimantName = fmt.Sprintf("%s %s", claim.Claimant.FirstName, claim.Claimant.LastName)
	}

	title := "New Claim Request"
	body := fmt.Sprintf("%s wants to pick up %d x %s", claimantName, claim.Quantity, post.Title)
	ns.persist(post.OwnerID, "claim_created", title, body, "claim", claim.ID)

	params := fmt.Sprintf(`{"claimId": %d, "postId": %d}`, claim.ID, post.ID)
	data := NotificationData{
		Type:    "claim_created",
		ClaimID: fmt.Sprintf("%d", claim.ID),
		PostID:  fmt.Sprintf("%d", post.ID),
		ActorID: fmt.Sprintf("%d", claim.ClaimantID),
		Status:  claim.Status,
		Screen:  "MyPostClaims",
		Params:  params,
		Action:  "view_claim",
	}
	return ns.SendNotificationToUser(post.OwnerID, title, body, data)
}

// NotifyClaimStatusChanged tells the party who did not act that a claim moved.
func (ns *NotificationService) NotifyClaimStatusChanged(claim *models.Claim, actorID uint) error {
	if claim.FoodPost == nil {
		return nil
	}
	post := claim.FoodPost

	// The actor already knows; notify the counterparty.
	recipient := claim.ClaimantID
	if actorID == claim.ClaimantID {
		recipient = post.OwnerID
	}

	title := "Claim Status Updated"
	body := fmt.Sprintf("Your claim for %s is now %s", post.Title, claim.Status)
	if recipient == post.OwnerID {
		body = fmt.Sprintf("A claim on %s is now %s", post.Title, claim.Status)
	}
	ns.persist(recipient, "claim_status_changed", title, body, "claim", claim.ID)

	params := fmt.Sprintf(`{"claimId": %d, "postId": %d, "status": "%s"}`, claim.ID, post.ID, claim.Status)
	data := NotificationData{
		Type:    "claim_status_changed",
		ClaimID: fmt.Sprintf("%d", claim.ID),
		PostID:  fmt.Sprintf("%d", post.ID),
		ActorID: fmt.Sprintf("%d", actorID),
		Status:  claim.Status,
		Screen:  "MyClaims",
		Params:  params,
		Action:  "view_claim",
	}
	return ns.SendNotificationToUser(recipient, title, body, data)
}

// NotifyPickupConfirmed tells the post owner the food changed hands.
func (ns *NotificationService) NotifyPickupConfirmed(claim *models.Claim) error {
	if claim.FoodPost == nil {
		return nil
	}
	post := claim.FoodPost

	title := "Pickup Confirmed"
	body := fmt.Sprintf("%d x %s was picked up", claim.Quantity, post.Title)
	ns.persist(post.OwnerID, "pickup_confirmed", title, body, "claim", claim.ID)

	params := fmt.Sprintf(`{"claimId": %d, "postId": %d}`, claim.ID, post.ID)
	data := NotificationData{
		Type:    "pickup_confirmed",
		ClaimID: fmt.Sprintf("%d", claim.ID),
		PostID:  fmt.Sprintf("%d", post.ID),
		ActorID: fmt.Sprintf("%d", claim.ClaimantID),
		Status:  claim.Status,
		Screen:  "MyPostClaims",
		Params:  params,
		Action:  "view_claim",
	}
	return ns.SendNotificationToUser(post.OwnerID, title, body, data)
}

// NotifyNewMessage tells the receiver a chat message arrived.
func (ns *NotificationService) NotifyNewMessage(receiverID, senderID uint, senderName, postTitle string) error {
	title := "New Message"
	body := fmt.Sprintf("%s sent you a message about %s", senderName, postTitle)

	params := fmt.Sprintf(`{"senderId": %d, "senderName": "%s"}`, senderID, senderName)
	data := NotificationData{
		Type:    "message_received",
		ActorID: fmt.Sprintf("%d", senderID),
		Screen:  "Messages",
		Params:  params,
		Action:  "view_conversation",
	}
	return ns.SendNotificationToUser(receiverID, title, body, data)
}

// NotifyWelcome greets a freshly registered user.
func (ns *NotificationService) NotifyWelcome(userID uint, firstName string) error {
	title := "Welcome to Ediens!"
	body := fmt.Sprintf("Hi %s! Share surplus food with your neighbours and earn eco points.", firstName)

	data := NotificationData{
		Type:    "welcome",
		ActorID: fmt.Sprintf("%d", userID),
	}

	// Wait a bit to ensure the push token is registered
	time.Sleep(2 * time.Second)
	return ns.SendNotificationToUser(userID, title, body, data)
}
