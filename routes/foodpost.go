package routes

import (
	"ediens-server/models"
	"ediens-server/services"
	"ediens-server/storage"
	"ediens-server/utils"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func CreateFoodPost(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input CreateFoodPostInput
	err := ctx.ReadJSON(&input)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	// Ensure arrays are never null
	dietary := input.Dietary
	if dietary == nil {
		dietary = []string{}
	}
	dietaryJSON, _ := json.Marshal(dietary)

	imagesArr := insertImages(input.Images, "")
	if imagesArr == nil {
		imagesArr = []string{}
	}
	imagesJSON, _ := json.Marshal(imagesArr)

	post := models.FoodPost{
		OwnerID:           claims.ID,
		Title:             input.Title,
		Description:       input.Description,
		Category:          input.Category,
		Dietary:           string(dietaryJSON),
		Quantity:          input.Quantity,
		RemainingQuantity: input.Quantity,
		Unit:              input.Unit,
		MaxReservations:   input.MaxReservations,
		AddressLine:       input.AddressLine,
		City:              input.City,
		Zip:               input.Zip,
		Country:           input.Country,
		Lat:               input.Lat,
		Lng:               input.Lng,
		PickupStart:       input.PickupStart,
		PickupEnd:         input.PickupEnd,
		ExpiresAt:         input.ExpiresAt,
		Urgency:           services.UrgencyTier(input.ExpiresAt, time.Now()),
		Images:            string(imagesJSON),
		IsActive:          input.IsActive,
		Status:            models.PostStatusAvailable,
	}

	result := storage.DB.Create(&post)
	if result.Error != nil {
		ctx.StatusCode(iris.StatusInternalServerError)
		ctx.JSON(iris.Map{"error": "Failed to create food post"})
		return
	}

	ctx.JSON(post)
}

func GetFoodPost(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	var post models.FoodPost
	if err := storage.DB.Preload("Owner").First(&post, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Food post not found", ctx)
		return
	}

	services.RefreshUrgency(storage.DB, &post)
	ctx.JSON(post)
}

func GetFoodPostsByUserID(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	var posts []models.FoodPost
	if err := storage.DB.Where("owner_id = ?", id).Order("created_at DESC").Find(&posts).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	services.RefreshUrgencyAll(storage.DB, posts)
	ctx.JSON(posts)
}

func UpdateFoodPost(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	claims := jwt.Get(ctx).(*utils.AccessToken)

	var input UpdateFoodPostInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var post models.FoodPost
	if err := storage.DB.First(&post, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Food post not found", ctx)
		return
	}

	if post.OwnerID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	dietary := input.Dietary
	if dietary == nil {
		dietary = []string{}
	}
	dietaryJSON, _ := json.Marshal(dietary)

	imagesArr := insertImages(input.Images, id)
	if imagesArr == nil {
		imagesArr = []string{}
	}
	imagesJSON, _ := json.Marshal(imagesArr)

	updates := map[string]interface{}{
		"title":        input.Title,
		"description":  input.Description,
		"category":     input.Category,
		"dietary":      string(dietaryJSON),
		"unit":         input.Unit,
		"address_line": input.AddressLine,
		"city":         input.City,
		"zip":          input.Zip,
		"country":      input.Country,
		"lat":          input.Lat,
		"lng":          input.Lng,
		"pickup_start": input.PickupStart,
		"pickup_end":   input.PickupEnd,
		"expires_at":   input.ExpiresAt,
		"urgency":      services.UrgencyTier(input.ExpiresAt, time.Now()),
		"images":       string(imagesJSON),
		"is_active":    input.IsActive,
	}

	if err := storage.DB.Model(&post).Updates(updates).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	storage.DB.First(&post, post.ID)
	ctx.JSON(post)
}

// DeleteFoodPost soft-removes a post. Posts with active claims cannot be
// removed; the owner has to settle those first.
func DeleteFoodPost(ctx iris.Context) {
	params := ctx.Params()
	id := params.Get("id")

	claims := jwt.Get(ctx).(*utils.AccessToken)

	var post models.FoodPost
	if err := storage.DB.First(&post, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Food post not found", ctx)
		return
	}

	if post.OwnerID != claims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	var activeClaims int64
	storage.DB.Model(&models.Claim{}).
		Where("food_post_id = ? AND status IN ?", post.ID, []string{models.ClaimStatusPending, models.ClaimStatusConfirmed}).
		Count(&activeClaims)
	if activeClaims > 0 {
		utils.CreateError(iris.StatusConflict, "Conflict", "Post has active claims", ctx)
		return
	}

	if err := storage.DB.Model(&post).Update("status", models.PostStatusRemoved).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"deleted": true})
}

func GetFoodPostsByBoundingBox(ctx iris.Context) {
	var boundingBox BoundingBoxInput
	err := ctx.ReadJSON(&boundingBox)
	if err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var posts []models.FoodPost
	result := storage.DB.Preload("Owner").
		Where("lat >= ? AND lat <= ? AND lng >= ? AND lng <= ? AND status IN (?) AND expires_at > ?",
			boundingBox.LatLow, boundingBox.LatHigh, boundingBox.LngLow, boundingBox.LngHigh,
			[]string{models.PostStatusAvailable, models.PostStatusReserved}, time.Now()).
		Order("expires_at ASC").
		Find(&posts)

	if result.Error != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	services.RefreshUrgencyAll(storage.DB, posts)
	ctx.JSON(posts)
}

// SearchFoodPosts filters available posts by category, urgency and free text.
func SearchFoodPosts(ctx iris.Context) {
	category := ctx.URLParamDefault("category", "")
	urgency := ctx.URLParamDefault("urgency", "")
	text := ctx.URLParamDefault("q", "")
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	q := storage.DB.Model(&models.FoodPost{}).
		Where("status = ? AND expires_at > ?", models.PostStatusAvailable, time.Now())

	if category != "" {
		q = q.Where("category = ?", category)
	}
	if urgency != "" {
		q = q.Where("urgency = ?", urgency)
	}
	if text != "" {
		like := "%" + strings.ToLower(text) + "%"
		q = q.Where("lower(title) LIKE ? OR lower(description) LIKE ?", like, like)
	}

	var total int64
	q.Count(&total)

	var posts []models.FoodPost
	if err := q.Preload("Owner").
		Order("expires_at ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&posts).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	services.RefreshUrgencyAll(storage.DB, posts)
	utils.JSONPage(ctx, posts, page, perPage, total)
}

// DeleteFoodPostImage removes one image URL from a post and deletes the
// hosted copy.
func DeleteFoodPostImage(ctx iris.Context) {
	userID := ctx.Values().Get("userID").(uint)
	postIDStr := ctx.URLParam("postID")
	imageURL := ctx.URLParam("imageURL")

	if postIDStr == "" || imageURL == "" {
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"message": "postID and imageURL are required"})
		return
	}

	var post models.FoodPost
	if err := storage.DB.Where("id = ? AND owner_id = ?", postIDStr, userID).First(&post).Error; err != nil {
		ctx.StatusCode(iris.StatusNotFound)
		ctx.JSON(iris.Map{"message": "Food post not found or not owned by user"})
		return
	}

	var images []string
	if post.Images != "" {
		if err := json.Unmarshal([]byte(post.Images), &images); err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
	}

	imageIndex := -1
	for i, img := range images {
		if img == imageURL {
			imageIndex = i
			break
		}
	}
	if imageIndex == -1 {
		ctx.StatusCode(iris.StatusNotFound)
		ctx.JSON(iris.Map{"message": "Image not found in post"})
		return
	}

	images = append(images[:imageIndex], images[imageIndex+1:]...)
	imagesJSON, _ := json.Marshal(images)

	if err := storage.DB.Model(&post).Update("images", string(imagesJSON)).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	if !storage.DeleteImage(imageURL) {
		// The database copy is gone either way; log and report success.
		fmt.Printf("WARNING: Failed to delete image from Cloudinary: %s\n", imageURL)
	}

	ctx.JSON(iris.Map{"success": true})
}

// insertImages uploads any not-yet-hosted base64 images and passes hosted
// URLs through untouched.
func insertImages(images []string, postID string) []string {
	var imagesArr []string
	for i, image := range images {
		if image == "" {
			continue
		}
		if strings.Contains(image, "res.cloudinary.com") {
			imagesArr = append(imagesArr, image)
			continue
		}

		timestamp := time.Now().UnixNano() / int64(time.Millisecond)
		publicID := fmt.Sprintf("post_%d_%d", timestamp, i)
		if postID != "" {
			publicID = "post/" + postID + "/" + publicID
		}

		res := storage.UploadBase64Image(image, publicID)
		if res["url"] != "" {
			imagesArr = append(imagesArr, res["url"])
		}
	}
	return imagesArr
}

type CreateFoodPostInput struct {
	Title           string    `json:"title" validate:"required,max=256"`
	Description     string    `json:"description"`
	Category        string    `json:"category" validate:"required,oneof=produce bakery dairy meals pantry other"`
	Dietary         []string  `json:"dietary"`
	Quantity        int       `json:"quantity" validate:"required,gte=1,lte=1000"`
	Unit            string    `json:"unit" validate:"required,max=20"`
	MaxReservations *int      `json:"maxReservations" validate:"omitempty,gte=1"`
	AddressLine     string    `json:"addressLine" validate:"required,max=512"`
	City            string    `json:"city" validate:"required,max=256"`
	Zip             string    `json:"zip" validate:"max=32"`
	Country         string    `json:"country" validate:"required,max=128"`
	Lat             float32   `json:"lat" validate:"required"`
	Lng             float32   `json:"lng" validate:"required"`
	PickupStart     time.Time `json:"pickupStart" validate:"required"`
	PickupEnd       time.Time `json:"pickupEnd" validate:"required"`
	ExpiresAt       time.Time `json:"expiresAt" validate:"required"`
	Images          []string  `json:"images"`
	IsActive        *bool     `json:"isActive"`
}

type UpdateFoodPostInput struct {
	Title       string    `json:"title" validate:"required,max=256"`
	Description string    `json:"description"`
	Category    string    `json:"category" validate:"required,oneof=produce bakery dairy meals pantry other"`
	Dietary     []string  `json:"dietary"`
	Unit        string    `json:"unit" validate:"required,max=20"`
	AddressLine string    `json:"addressLine" validate:"required,max=512"`
	City        string    `json:"city" validate:"required,max=256"`
	Zip         string    `json:"zip" validate:"max=32"`
	Country     string    `json:"country" validate:"required,max=128"`
	Lat         float32   `json:"lat" validate:"required"`
	Lng         float32   `json:"lng" validate:"required"`
	PickupStart time.Time `json:"pickupStart" validate:"required"`
	PickupEnd   time.Time `json:"pickupEnd" validate:"required"`
	ExpiresAt   time.Time `json:"expiresAt" validate:"required"`
	Images      []string  `json:"images"`
	IsActive    *bool     `json:"isActive"`
}

type BoundingBoxInput struct {
	LatLow  float32 `json:"latLow" validate:"required"`
	LatHigh float32 `json:"latHigh" validate:"required"`
	LngLow  float32 `json:"lngLow" validate:"required"`
	LngHigh float32 `json:"lngHigh" validate:"required"`
}
