package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"financegpt/internal/bootstrap"
	"financegpt/internal/transport/http/handler"
	"financegpt/internal/transport/http/middleware"
	"financegpt/internal/transport/http/response"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery(), middleware.CORS(app.Config.App.CORSOrigins))
	router.NoRoute(response.NotFound)

	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(
		app.Auth,
		app.Users,
		app.OAuth,
		app.Config.App.FrontendURL,
		time.Duration(app.Config.Google.StateTTLSeconds)*time.Second,
		app.Logger,
	)
	userHandler := handler.NewUserHandler(app.Users, app.Logger)
	chatHandler := handler.NewChatHandler(app.Chat, app.Logger)
	requireAuth := middleware.AuthJWT(app.Auth)

	router.GET("/healthz", healthHandler.Check)

	api := router.Group("/api")
	api.GET("/health", healthHandler.Check)
	api.GET("/healthz", healthHandler.Check)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)
	authGroup.GET("/profile", requireAuth, authHandler.Me)
	authGroup.POST("/logout", requireAuth, authHandler.Logout)
	authGroup.GET("/google", authHandler.GoogleLogin)
	authGroup.GET("/google/callback", authHandler.GoogleCallback)

	api.POST("/login", authHandler.Login)
	api.POST("/users", authHandler.Register)

	userGroup := api.Group("/user", requireAuth)
	userGroup.GET("", userHandler.Get)
	userGroup.PUT("/profile", userHandler.UpdateProfile)
	userGroup.POST("/password", userHandler.ChangePassword)
	userGroup.PUT("/theme", userHandler.UpdateTheme)
	api.POST("/change-password", requireAuth, userHandler.ChangePassword)

	for _, prefix := range []string{"/chat", "/chats"} {
		chatGroup := api.Group(prefix, requireAuth)
		chatGroup.POST("", chatHandler.Save)
		chatGroup.POST("/ai", chatHandler.AI)
		chatGroup.GET("/:userId", chatHandler.History)
		chatGroup.DELETE("/:userId", chatHandler.Clear)
	}
	api.POST("/ai-chat", requireAuth, chatHandler.AI)

	return router
}
