package routes

import (
	"ediens-server/models"
	"ediens-server/services"
	"ediens-server/storage"
	"ediens-server/utils"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"gorm.io/gorm"
)

type CreateConversationInput struct {
	ClaimID uint   `json:"claimID" validate:"required"`
	Message string `json:"message" validate:"lt=5000"`
}

// CreateConversation opens (or reuses) the chat between a claim's owner and
// claimant and seeds it with a post card message.
func CreateConversation(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreateConversationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var claim models.Claim
	if err := storage.DB.Preload("FoodPost").First(&claim, input.ClaimID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Claim not found", ctx)
		return
	}
	if claim.FoodPost == nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ownerID := claim.FoodPost.OwnerID
	if claims.ID != ownerID && claims.ID != claim.ClaimantID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	var conversation models.Conversation
	storage.DB.Where("claim_id = ?", claim.ID).First(&conversation)

	if conversation.ID == 0 {
		claimID := claim.ID
		conversation = models.Conversation{
			OwnerID:    ownerID,
			ClaimantID: claim.ClaimantID,
			ClaimID:    &claimID,
		}
		if err := storage.DB.Create(&conversation).Error; err != nil {
			ctx.StopWithStatus(http.StatusInternalServerError)
			return
		}
	}

	if input.Message != "" {
		receiverID := ownerID
		if claims.ID == ownerID {
			receiverID = claim.ClaimantID
		}

		previewImage := ""
		if claim.FoodPost.Images != "" {
			var imgs []string
			if err := json.Unmarshal([]byte(claim.FoodPost.Images), &imgs); err == nil && len(imgs) > 0 {
				previewImage = imgs[0]
			}
		}
		refID := claim.FoodPostID

		msg := models.Message{
			ConversationID:  conversation.ID,
			SenderID:        claims.ID,
			ReceiverID:      receiverID,
			Text:            input.Message,
			Type:            "post_card",
			RefType:         "food_post",
			RefID:           &refID,
			PreviewTitle:    claim.FoodPost.Title,
			PreviewSubtitle: fmt.Sprintf("%d %s", claim.Quantity, claim.FoodPost.Unit),
			PreviewImageURL: previewImage,
			State:           "sent",
		}
		if err := storage.DB.Create(&msg).Error; err != nil {
			ctx.StopWithStatus(http.StatusInternalServerError)
			return
		}
	}

	storage.DB.Preload("Owner").Preload("Claimant").First(&conversation, conversation.ID)
	ctx.JSON(conversation)
}

func GetConversationByID(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	params := ctx.Params()
	id := params.Get("id")

	var conversation models.Conversation
	if err := storage.DB.Preload("Owner").Preload("Claimant").
		Preload("Messages", func(db *gorm.DB) *gorm.DB {
			return db.Order("messages.id ASC")
		}).
		First(&conversation, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Conversation not found", ctx)
		return
	}

	if conversation.OwnerID != claims.ID && conversation.ClaimantID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	ctx.JSON(conversation)
}

func GetConversationsByUserID(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var conversations []models.Conversation
	if err := storage.DB.Preload("Owner").Preload("Claimant").
		Where("owner_id = ? OR claimant_id = ?", claims.ID, claims.ID).
		Order("updated_at DESC").
		Find(&conversations).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(conversations)
}

func CreateMessage(ctx iris.Context) {
	var req CreateMessageInput

	err := ctx.ReadJSON(&req)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	claims := jwt.Get(ctx).(*utils.AccessToken)

	if req.SenderID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	var conversation models.Conversation
	if err := storage.DB.First(&conversation, req.ConversationID).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Conversation not found", ctx)
		return
	}
	if conversation.OwnerID != claims.ID && conversation.ClaimantID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	message := models.Message{
		ConversationID:  req.ConversationID,
		SenderID:        req.SenderID,
		ReceiverID:      req.ReceiverID,
		Text:            req.Text,
		Type:            req.Type,
		RefType:         req.RefType,
		RefID:           req.RefID,
		PreviewTitle:    req.PreviewTitle,
		PreviewSubtitle: req.PreviewSubtitle,
		PreviewImageURL: req.PreviewImageURL,
		State:           "sent",
	}

	storage.DB.Create(&message)
	storage.DB.Model(&conversation).Update("updated_at", time.Now())

	var sender models.User
	if err := storage.DB.First(&sender, req.SenderID).Error; err == nil {
		senderName := fmt.Sprintf("%s %s", sender.FirstName, sender.LastName)
		postTitle := ""
		if req.RefType == "food_post" && req.RefID != nil {
			var post models.FoodPost
			if err := storage.DB.First(&post, *req.RefID).Error; err == nil {
				postTitle = post.Title
			}
		}

		notificationService := services.NewNotificationService()
		go notificationService.NotifyNewMessage(req.ReceiverID, req.SenderID, senderName, postTitle)
	}

	ctx.JSON(message)
}

type CreateMessageInput struct {
	ConversationID  uint   `json:"conversationID" validate:"required"`
	SenderID        uint   `json:"senderID" validate:"required"`
	ReceiverID      uint   `json:"receiverID" validate:"required"`
	Text            string `json:"text" validate:"lt=5000"`
	Type            string `json:"type" validate:"omitempty,oneof=text post_card"`
	RefType         string `json:"refType" validate:"omitempty,oneof=food_post"`
	RefID           *uint  `json:"refID"`
	PreviewTitle    string `json:"previewTitle"`
	PreviewSubtitle string `json:"previewSubtitle"`
	PreviewImageURL string `json:"previewImageURL"`
}

// ListMessages: GET /api/messages?conversationID=...&cursor=...&limit=...
func ListMessages(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	convID, err := ctx.URLParamInt("conversationID")
	if err != nil || convID <= 0 {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var conversation models.Conversation
	if err := storage.DB.First(&conversation, convID).Error; err != nil {
		ctx.StopWithStatus(http.StatusNotFound)
		return
	}
	if conversation.OwnerID != claims.ID && conversation.ClaimantID != claims.ID {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	cursor, _ := ctx.URLParamInt("cursor")

	q := storage.DB.Where("conversation_id = ?", convID)
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	var msgs []models.Message
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	nextCursor := 0
	if len(msgs) > 0 {
		nextCursor = int(msgs[0].ID)
	}
	ctx.JSON(iris.Map{"messages": msgs, "nextCursor": nextCursor})
}

type SetMessageStateInput struct {
	ConversationID uint   `json:"conversationID" validate:"required"`
	MessageIDs     []uint `json:"messageIDs" validate:"required"`
	State          string `json:"state" validate:"required,oneof=delivered seen"`
}

// SetMessageState: POST /api/messages/state
func SetMessageState(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var req SetMessageStateInput
	if err := ctx.ReadJSON(&req); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	updates := map[string]any{"state": req.State}
	now := time.Now()
	if req.State == "delivered" {
		updates["delivered_at"] = now
	}
	if req.State == "seen" {
		updates["seen_at"] = now
	}
	// Only the receiver may flip delivery state on a message.
	if err := storage.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND id IN ? AND receiver_id = ?", req.ConversationID, req.MessageIDs, claims.ID).
		Updates(updates).Error; err != nil {
		ctx.StopWithStatus(http.StatusInternalServerError)
		return
	}
	ctx.JSON(iris.Map{"success": true})
}

// Typing sets a short-lived Redis key so the counterparty can render a
// typing indicator.
func Typing(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	convID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var conversation models.Conversation
	if err := storage.DB.First(&conversation, convID).Error; err != nil {
		ctx.StopWithStatus(http.StatusNotFound)
		return
	}
	if conversation.OwnerID != claims.ID && conversation.ClaimantID != claims.ID {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	key := typingKey(convID, claims.ID)
	storage.Redis.Set(ctx, key, "1", 5*time.Second)
	ctx.JSON(iris.Map{"success": true})
}

// ListTyping reports which participant of the conversation is typing.
func ListTyping(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	convID, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithStatus(http.StatusBadRequest)
		return
	}

	var conversation models.Conversation
	if err := storage.DB.Preload("Owner").Preload("Claimant").First(&conversation, convID).Error; err != nil {
		ctx.StopWithStatus(http.StatusNotFound)
		return
	}
	if conversation.OwnerID != claims.ID && conversation.ClaimantID != claims.ID {
		ctx.StopWithStatus(http.StatusForbidden)
		return
	}

	typing := []iris.Map{}
	check := func(userID uint, user *models.User) {
		if userID == claims.ID {
			return
		}
		key := typingKey(convID, userID)
		if val, err := storage.Redis.Get(ctx, key).Result(); err == nil && val == "1" {
			name := ""
			if user != nil {
				name = user.FirstName + " " + user.LastName
			}
			typing = append(typing, iris.Map{"userID": userID, "name": name})
		}
	}
	check(conversation.OwnerID, conversation.Owner)
	check(conversation.ClaimantID, conversation.Claimant)

	ctx.JSON(iris.Map{"success": true, "typing": typing})
}

func typingKey(conversationID uint, userID uint) string {
	return fmt.Sprintf("typing:conv:%d:user:%d", conversationID, userID)
}
