package routes

import (
	"ediens-server/models"
	"ediens-server/services"
	"ediens-server/storage"
	"ediens-server/utils"
	"errors"
	"strconv"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// handleClaimError maps the claim service's error values onto HTTP problems.
func handleClaimError(err error, ctx iris.Context) {
	var transitionErr *services.InvalidTransitionError
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.CreateError(iris.StatusNotFound, "Not Found", err.Error(), ctx)
	case errors.Is(err, services.ErrUnauthorized):
		utils.CreateError(iris.StatusForbidden, "Forbidden", err.Error(), ctx)
	case errors.Is(err, services.ErrCapacityExceeded):
		utils.CreateError(iris.StatusConflict, "Capacity Exceeded", err.Error(), ctx)
	case errors.Is(err, services.ErrDuplicateClaim):
		utils.CreateError(iris.StatusConflict, "Duplicate Claim", err.Error(), ctx)
	case errors.Is(err, services.ErrAlreadyRated):
		utils.CreateError(iris.StatusBadRequest, "Already Rated", err.Error(), ctx)
	case errors.As(err, &transitionErr):
		utils.CreateError(iris.StatusConflict, "Invalid Transition", err.Error(), ctx)
	default:
		utils.CreateInternalServerError(ctx)
	}
}

func CreateClaim(ctx iris.Context) {
	claims := jwt.Get(ctx).(*utils.AccessToken)

	params := ctx.Params()
	postID, err := strconv.ParseUint(params.Get("id"), 10, 32)
	if err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		return
	}

	var input services.CreateClaimInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	claim, err := services.NewClaimService(storage.DB).Create(claims.ID, uint(postID), input)
	if err != nil {
		handleClaimError(err, ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(claim)
}

// GetClaimsByPostID lists all claims on a post. Only the post owner may look.
func GetClaimsByPostID(ctx iris.Context) {
	tokenClaims := jwt.Get(ctx).(*utils.AccessToken)

	params := ctx.Params()
	id := params.Get("id")

	var post models.FoodPost
	if err := storage.DB.First(&post, id).Error; err != nil {
		utils.CreateError(iris.StatusNotFound, "Not Found", "Food post not found", ctx)
		return
	}

	if post.OwnerID != tokenClaims.ID {
		ctx.StatusCode(iris.StatusForbidden)
		return
	}

	var postClaims []models.Claim
	if err := storage.DB.Preload("Claimant").
		Where("food_post_id = ?", post.ID).
		Order("created_at ASC").
		Find(&postClaims).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(postClaims)
}

// GetUserClaims lists the claims the caller has made, newest first.
func GetUserClaims(ctx iris.Context) {
	tokenClaims := jwt.Get(ctx).(*utils.AccessToken)

	status := ctx.URLParamDefault("status", "")

	q := storage.DB.Preload("FoodPost").Preload("FoodPost.Owner").
		Where("claimant_id = ?", tokenClaims.ID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var userClaims []models.Claim
	if err := q.Order("created_at DESC").Find(&userClaims).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(userClaims)
}

// GetOwnerClaims lists claims made against any of the caller's posts.
func GetOwnerClaims(ctx iris.Context) {
	tokenClaims := jwt.Get(ctx).(*utils.AccessToken)

	status := ctx.URLParamDefault("status", "")

	q := storage.DB.Preload("FoodPost").Preload("Claimant").
		Joins("JOIN food_posts ON food_posts.id = claims.food_post_id").
		Where("food_posts.owner_id = ?", tokenClaims.ID)
	if status != "" {
		q = q.Where("claims.status = ?", status)
	}

	var ownerClaims []models.Claim
	if err := q.Order("claims.created_at DESC").Find(&ownerClaims).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(ownerClaims)
}

func ConfirmClaim(ctx iris.Context) {
	runClaimTransition(ctx, func(svc *services.ClaimService, actorID, claimID uint) (*models.Claim, error) {
		return svc.Confirm(actorID, claimID)
	})
}

func CancelClaim(ctx iris.Context) {
	runClaimTransition(ctx, func(svc *services.ClaimService, actorID, claimID uint) (*models.Claim, error) {
		return svc.Cancel(actorID, claimID)
	})
}

func ConfirmPickup(ctx iris.Context) {
	runClaimTransition(ctx, func(svc *services.ClaimService, actorID, claimID uint) (*models.Claim, error) {
		return svc.ConfirmPickup(actorID, claimID)
	})
}

func runClaimTransition(ctx iris.Context, op func(*services.ClaimService, uint, uint) (*models.Claim, error)) {
	tokenClaims := jwt.Get(ctx).(*utils.AccessToken)

	params := ctx.Params()
	claimID, err := strconv.ParseUint(params.Get("id"), 10, 32)
	if err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		return
	}

	claim, err := op(services.NewClaimService(storage.DB), tokenClaims.ID, uint(claimID))
	if err != nil {
		handleClaimError(err, ctx)
		return
	}

	ctx.JSON(claim)
}

func RateClaim(ctx iris.Context) {
	tokenClaims := jwt.Get(ctx).(*utils.AccessToken)

	params := ctx.Params()
	claimID, err := strconv.ParseUint(params.Get("id"), 10, 32)
	if err != nil {
		ctx.StatusCode(iris.StatusBadRequest)
		return
	}

	var input services.RateClaimInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	claim, err := services.NewClaimService(storage.DB).Rate(tokenClaims.ID, uint(claimID), input)
	if err != nil {
		handleClaimError(err, ctx)
		return
	}

	ctx.JSON(claim)
}

// ExpireOverdueClaims sweeps confirmed claims whose pickup window has closed.
// Wired as an admin endpoint so a scheduler can hit it periodically.
func ExpireOverdueClaims(ctx iris.Context) {
	expired, err := services.NewClaimService(storage.DB).ExpireOverdue()
	if err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"expired": expired})
}
