package routes

import (
	"net/http"
	"strings"
	"time"

	"ediens-server/models"
	"ediens-server/services"
	"ediens-server/storage"
	"ediens-server/utils"

	"github.com/kataras/iris/v12"
)

// AdminListUsers - GET /admin/users?role=&q=&page=&per_page=
func AdminListUsers(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 25)
	if perPage <= 0 || perPage > 100 {
		perPage = 25
	}

	var users []models.User
	q := strings.TrimSpace(ctx.URLParamDefault("q", ""))
	role := strings.TrimSpace(ctx.URLParamDefault("role", ""))

	query := storage.DB.Model(&models.User{})
	if role != "" {
		query = query.Where("role = ?", role)
	}
	if q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("lower(first_name) LIKE ? OR lower(last_name) LIKE ? OR lower(email) LIKE ?", like, like, like)
	}

	var total int64
	query.Count(&total)
	query = query.Offset((page - 1) * perPage).Limit(perPage)
	if err := query.Find(&users).Error; err != nil {
		ctx.StatusCode(http.StatusInternalServerError)
		ctx.JSON(iris.Map{"error": "server_error", "message": err.Error()})
		return
	}

	ctx.JSON(iris.Map{
		"data":  users,
		"meta":  iris.Map{"page": page, "per_page": perPage, "total": total},
		"links": iris.Map{},
	})
}

// AdminListPosts - GET /admin/posts?status=&category=&page=&per_page=
func AdminListPosts(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 25)
	if perPage <= 0 || perPage > 100 {
		perPage = 25
	}

	status := strings.TrimSpace(ctx.URLParamDefault("status", ""))
	category := strings.TrimSpace(ctx.URLParamDefault("category", ""))

	query := storage.DB.Model(&models.FoodPost{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var total int64
	query.Count(&total)

	var posts []models.FoodPost
	if err := query.Preload("Owner").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&posts).Error; err != nil {
		utils.JSONError(ctx, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	ctx.JSON(iris.Map{
		"data":  posts,
		"meta":  iris.Map{"page": page, "per_page": perPage, "total": total},
		"links": iris.Map{},
	})
}

// AdminUpdatePostStatus - PATCH /admin/posts/:id/status { status }
func AdminUpdatePostStatus(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithJSON(http.StatusBadRequest, iris.Map{"error": "invalid_id"})
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	valid := map[string]bool{
		models.PostStatusAvailable: true,
		models.PostStatusReserved:  true,
		models.PostStatusCompleted: true,
		models.PostStatusExpired:   true,
		models.PostStatusRemoved:   true,
	}
	if err := ctx.ReadJSON(&body); err != nil || !valid[body.Status] {
		ctx.StopWithJSON(http.StatusBadRequest, iris.Map{"error": "invalid_status"})
		return
	}

	var post models.FoodPost
	if err := storage.DB.First(&post, id).Error; err != nil {
		ctx.StopWithJSON(http.StatusNotFound, iris.Map{"error": "not_found"})
		return
	}

	if err := storage.DB.Model(&post).Update("status", body.Status).Error; err != nil {
		ctx.StopWithJSON(http.StatusInternalServerError, iris.Map{"error": "server_error"})
		return
	}

	ctx.JSON(iris.Map{"data": post})
}

// AdminListClaims - GET /admin/claims?status=&page=&per_page=
func AdminListClaims(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 25)
	if perPage <= 0 || perPage > 100 {
		perPage = 25
	}

	status := strings.TrimSpace(ctx.URLParamDefault("status", ""))

	query := storage.DB.Model(&models.Claim{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	query.Count(&total)

	var adminClaims []models.Claim
	if err := query.Preload("FoodPost").Preload("Claimant").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&adminClaims).Error; err != nil {
		utils.JSONError(ctx, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	ctx.JSON(iris.Map{
		"data":  adminClaims,
		"meta":  iris.Map{"page": page, "per_page": perPage, "total": total},
		"links": iris.Map{},
	})
}

// AdminCancelClaim - POST /admin/claims/:id/cancel
// Runs the regular cancel transition on behalf of the claimant, so the same
// guards and post aggregate recompute apply.
func AdminCancelClaim(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		ctx.StopWithJSON(http.StatusBadRequest, iris.Map{"error": "invalid_id"})
		return
	}

	var claim models.Claim
	if err := storage.DB.First(&claim, id).Error; err != nil {
		ctx.StopWithJSON(http.StatusNotFound, iris.Map{"error": "not_found"})
		return
	}

	cancelled, err := services.NewClaimService(storage.DB).Cancel(claim.ClaimantID, claim.ID)
	if err != nil {
		handleClaimError(err, ctx)
		return
	}

	ctx.JSON(iris.Map{"data": cancelled})
}

// AdminStats - GET /admin/stats
func AdminStats(ctx iris.Context) {
	var availablePosts int64
	storage.DB.Model(&models.FoodPost{}).Where("status = ?", models.PostStatusAvailable).Count(&availablePosts)
	var activeClaims int64
	storage.DB.Model(&models.Claim{}).
		Where("status IN ?", []string{models.ClaimStatusPending, models.ClaimStatusConfirmed}).
		Count(&activeClaims)
	var pickedUp int64
	storage.DB.Model(&models.Claim{}).Where("status = ?", models.ClaimStatusPickedUp).Count(&pickedUp)

	since7 := time.Now().AddDate(0, 0, -7)
	since30 := time.Now().AddDate(0, 0, -30)
	var newClaims7, newClaims30 int64
	storage.DB.Model(&models.Claim{}).Where("created_at >= ?", since7).Count(&newClaims7)
	storage.DB.Model(&models.Claim{}).Where("created_at >= ?", since30).Count(&newClaims30)

	// Units saved from waste so far
	var unitsSaved int64
	storage.DB.Model(&models.Claim{}).
		Where("status = ?", models.ClaimStatusPickedUp).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&unitsSaved)

	ctx.JSON(iris.Map{
		"data": iris.Map{
			"available_posts": availablePosts,
			"active_claims":   activeClaims,
			"picked_up":       pickedUp,
			"units_saved":     unitsSaved,
			"new_claims_7d":   newClaims7,
			"new_claims_30d":  newClaims30,
		},
		"meta":  iris.Map{},
		"links": iris.Map{},
	})
}

// AdminGetUser - GET /admin/users/:id
func AdminGetUser(ctx iris.Context) {
	id, err := ctx.Params().GetUint("id")
	if err != nil {
		utils.JSONError(ctx, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}

	var user models.User
	if err := storage.DB.First(&user, id).Error; err != nil {
		utils.JSONError(ctx, http.StatusNotFound, "not_found", "user not found")
		return
	}

	var posts []models.FoodPost
	storage.DB.Where("owner_id = ?", id).Order("created_at DESC").Limit(20).Find(&posts)

	var userClaims []models.Claim
	storage.DB.Where("claimant_id = ?", id).Order("created_at DESC").Limit(20).Find(&userClaims)

	ctx.JSON(iris.Map{
		"data": iris.Map{
			"user":   user,
			"posts":  posts,
			"claims": userClaims,
		},
		"meta":  iris.Map{},
		"links": iris.Map{},
	})
}
