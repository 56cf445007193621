package main

import (
	"ediens-server/routes"
	"ediens-server/storage"
	"ediens-server/utils"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	// Initialize services
	storage.InitializeDB()
	storage.InitializeCloudinary()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	// Minimal middleware - compression only
	app.Use(iris.Compression)

	// JWT Verifiers
	resetTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("EMAIL_TOKEN_SECRET")))
	resetTokenVerifier.WithDefaultBlocklist()
	resetTokenVerifierMiddleware := resetTokenVerifier.Verify(func() interface{} {
		return new(utils.ForgotPasswordToken)
	})

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	// Health check endpoint
	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	// Routes
	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Post("/google", routes.GoogleLoginOrSignUp)
		user.Post("/apple", routes.AppleLoginOrSignUp)
		user.Post("/forgotpassword", routes.ForgotPassword)
		user.Post("/resetpassword", resetTokenVerifierMiddleware, routes.ResetPassword)
		user.Get("/search", accessTokenVerifierMiddleware, routes.SearchUsers)
		user.Get("/{id}/posts/saved", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.GetUserSavedPosts)
		user.Patch("/{id}/posts/saved", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.AlterUserSavedPosts)
		user.Patch("/{id}/pushtoken", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.AlterPushToken)
		user.Patch("/{id}/settings/notifications", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.AllowsNotifications)
		user.Patch("/{id}/profile", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.UpdateUserProfile)
		user.Get("/{id}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUser)
		user.Post("/feedback", accessTokenVerifierMiddleware, routes.CreateFeedback)
	}

	foodpost := app.Party("/api/foodpost")
	{
		foodpost.Post("/", accessTokenVerifierMiddleware, routes.CreateFoodPost)
		foodpost.Get("/search", routes.SearchFoodPosts)
		foodpost.Get("/{id}", routes.GetFoodPost)
		foodpost.Get("/userid/{id}", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.GetFoodPostsByUserID)
		foodpost.Patch("/update/{id}", accessTokenVerifierMiddleware, routes.UpdateFoodPost)
		foodpost.Delete("/{id}", accessTokenVerifierMiddleware, routes.DeleteFoodPost)
		foodpost.Post("/boundingbox", routes.GetFoodPostsByBoundingBox)
		foodpost.Delete("/image", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.DeleteFoodPostImage)
	}

	claim := app.Party("/api/claim")
	{
		claim.Post("/post/{id}", accessTokenVerifierMiddleware, routes.CreateClaim)
		claim.Get("/post/{id}", accessTokenVerifierMiddleware, routes.GetClaimsByPostID)
		claim.Get("/mine", accessTokenVerifierMiddleware, routes.GetUserClaims)
		claim.Get("/owner", accessTokenVerifierMiddleware, routes.GetOwnerClaims)
		claim.Post("/{id}/confirm", accessTokenVerifierMiddleware, routes.ConfirmClaim)
		claim.Post("/{id}/cancel", accessTokenVerifierMiddleware, routes.CancelClaim)
		claim.Post("/{id}/pickup", accessTokenVerifierMiddleware, routes.ConfirmPickup)
		claim.Post("/{id}/rate", accessTokenVerifierMiddleware, routes.RateClaim)
	}

	location := app.Party("/api/location")
	{
		location.Get("/nearby", routes.GetNearbyFoodPosts)
	}

	conversation := app.Party("/api/conversation")
	{
		conversation.Post("/", accessTokenVerifierMiddleware, routes.CreateConversation)
		conversation.Get("/{id:uint}", accessTokenVerifierMiddleware, routes.GetConversationByID)
		conversation.Get("/mine", accessTokenVerifierMiddleware, routes.GetConversationsByUserID)
		conversation.Post("/{id:uint}/typing", accessTokenVerifierMiddleware, routes.Typing)
		conversation.Get("/{id:uint}/typing", accessTokenVerifierMiddleware, routes.ListTyping)
	}

	messages := app.Party("/api/messages")
	{
		messages.Post("/", accessTokenVerifierMiddleware, routes.CreateMessage)
		messages.Get("/", accessTokenVerifierMiddleware, routes.ListMessages)
		messages.Post("/state", accessTokenVerifierMiddleware, routes.SetMessageState)
	}

	notifications := app.Party("/api/notifications")
	{
		notifications.Get("/", accessTokenVerifierMiddleware, routes.ListNotifications)
		notifications.Patch("/{id:uint}/read", accessTokenVerifierMiddleware, routes.MarkNotificationRead)
		notifications.Post("/read-all", accessTokenVerifierMiddleware, routes.MarkAllNotificationsRead)
		notifications.Get("/settings", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUserNotificationSettings)
		notifications.Put("/settings", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.UpdateUserNotificationSettings)
	}

	upload := app.Party("/api/upload")
	{
		upload.Post("/image", accessTokenVerifierMiddleware, routes.UploadImage)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/users", routes.AdminListUsers)
		admin.Get("/users/{id:uint}", routes.AdminGetUser)
		admin.Get("/posts", routes.AdminListPosts)
		admin.Patch("/posts/{id:uint}/status", routes.AdminUpdatePostStatus)
		admin.Get("/claims", routes.AdminListClaims)
		admin.Post("/claims/{id:uint}/cancel", routes.AdminCancelClaim)
		admin.Post("/claims/expire-overdue", routes.ExpireOverdueClaims)
		admin.Get("/feedback", routes.AdminListFeedback)
		admin.Get("/stats", routes.AdminStats)
		admin.Post("/notifications/test-push", routes.SendTestNotification)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	// Get port from environment
	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}
