package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cowork/backend/internal/handler"
	"cowork/backend/internal/middleware"
	"cowork/backend/internal/service"
)

func New(
	authService *service.AuthService,
	authHandler *handler.AuthHandler,
	templateHandler *handler.TemplateHandler,
	sessionHandler *handler.SessionHandler,
	corsOrigins []string,
) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), middleware.CORS(corsOrigins))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	templates := api.Group("/templates")
	templates.Use(middleware.Auth(authService))
	templates.POST("", templateHandler.Create)
	templates.GET("", templateHandler.List)
	templates.GET("/:id", templateHandler.Get)
	templates.PUT("/:id", templateHandler.Update)
	templates.DELETE("/:id", templateHandler.Delete)

	sessions := api.Group("/sessions")
	sessions.Use(middleware.Auth(authService))
	sessions.POST("", sessionHandler.Commence)
	sessions.POST("/join", sessionHandler.Join)
	sessions.GET("/:id", sessionHandler.Get)
	sessions.POST("/:id/actions", sessionHandler.Action)

	return engine
}
