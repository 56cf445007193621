package routes

import (
	"time"

	"ediens-server/models"
	"ediens-server/services"
	"ediens-server/storage"
	"ediens-server/utils"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// ListNotifications returns the caller's in-app notifications, newest first.
func ListNotifications(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	unreadOnly, _ := ctx.URLParamBool("unread")
	limit, _ := ctx.URLParamInt("limit")
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	q := storage.DB.Where("user_id = ?", claims.ID)
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var notifications []models.Notification
	if err := q.Order("created_at DESC").Limit(limit).Find(&notifications).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var unreadCount int64
	storage.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", claims.ID, false).
		Count(&unreadCount)

	ctx.JSON(iris.Map{"notifications": notifications, "unreadCount": unreadCount})
}

// MarkNotificationRead flags a single notification as read.
func MarkNotificationRead(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	params := ctx.Params()
	id := params.Get("id")

	var notification models.Notification
	if err := storage.DB.Where("id = ? AND user_id = ?", id, claims.ID).First(&notification).Error; err != nil {
		ctx.StatusCode(iris.StatusNotFound)
		ctx.JSON(iris.Map{"message": "Notification not found"})
		return
	}

	now := time.Now()
	if err := storage.DB.Model(&notification).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}

// MarkAllNotificationsRead flags every unread notification of the caller.
func MarkAllNotificationsRead(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	now := time.Now()
	result := storage.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", claims.ID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if result.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "updated": result.RowsAffected})
}

// GetUserNotificationSettings returns notification settings for a user
func GetUserNotificationSettings(ctx iris.Context) {
	userIDInterface := ctx.Values().Get("userID")
	if userIDInterface == nil {
		ctx.StatusCode(iris.StatusUnauthorized)
		ctx.JSON(iris.Map{"message": "User ID not found in context"})
		return
	}

	userID, ok := userIDInterface.(uint)
	if !ok {
		ctx.StatusCode(iris.StatusInternalServerError)
		ctx.JSON(iris.Map{"message": "Invalid user ID format"})
		return
	}

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		ctx.StatusCode(iris.StatusNotFound)
		ctx.JSON(iris.Map{"message": "User not found"})
		return
	}

	ctx.JSON(iris.Map{
		"success":             true,
		"allowsNotifications": user.AllowsNotifications,
		"hasTokens":           user.PushTokens != nil,
		"claims":              true, // Default settings
		"messages":            true,
		"reminders":           true,
	})
}

// UpdateUserNotificationSettings updates notification preferences
func UpdateUserNotificationSettings(ctx iris.Context) {
	userIDInterface := ctx.Values().Get("userID")
	if userIDInterface == nil {
		ctx.StatusCode(iris.StatusUnauthorized)
		ctx.JSON(iris.Map{"message": "User ID not found in context"})
		return
	}

	userID, ok := userIDInterface.(uint)
	if !ok {
		ctx.StatusCode(iris.StatusInternalServerError)
		ctx.JSON(iris.Map{"message": "Invalid user ID format"})
		return
	}

	type NotificationSettingsInput struct {
		AllowsNotifications bool `json:"allowsNotifications"`
		Claims              bool `json:"claims"`
		Messages            bool `json:"messages"`
		Reminders           bool `json:"reminders"`
	}

	var input NotificationSettingsInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.First(&user, userID).Error; err != nil {
		ctx.StatusCode(iris.StatusNotFound)
		ctx.JSON(iris.Map{"message": "User not found"})
		return
	}

	user.AllowsNotifications = &input.AllowsNotifications

	if err := storage.DB.Save(&user).Error; err != nil {
		ctx.StatusCode(iris.StatusInternalServerError)
		ctx.JSON(iris.Map{"message": "Failed to update notification settings"})
		return
	}

	ctx.JSON(iris.Map{
		"success": true,
		"message": "Notification settings updated successfully",
	})
}

// TestNotificationInput represents the input for testing notifications
type TestNotificationInput struct {
	UserID uint   `json:"userId" validate:"required"`
	Title  string `json:"title" validate:"required"`
	Body   string `json:"body" validate:"required"`
	Type   string `json:"type"`
}

// SendTestNotification sends a test notification to a user (admin only)
func SendTestNotification(ctx iris.Context) {
	var input TestNotificationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	data := services.NotificationData{
		Type: input.Type,
	}

	notificationService := services.NewNotificationService()
	if err := notificationService.SendNotificationToUser(input.UserID, input.Title, input.Body, data); err != nil {
		ctx.StatusCode(iris.StatusInternalServerError)
		ctx.JSON(iris.Map{
			"success": false,
			"message": "Failed to send notification",
			"error":   err.Error(),
		})
		return
	}

	ctx.JSON(iris.Map{
		"success": true,
		"message": "Test notification sent successfully",
	})
}
