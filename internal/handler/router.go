package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notesync/internal/middleware"
)

type RouterDeps struct {
	Auth       *AuthHandler
	Books      *BookHandler
	Account    *AccountHandler
	Webhook    *WebhookHandler
	JWTSecret  []byte
	SyncWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/webhook/github", deps.Webhook.HandlePush)

	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/books", deps.Books.Create)
	authGroup.GET("/books", deps.Books.List)
	authGroup.GET("/books/:id", deps.Books.Get)
	authGroup.DELETE("/books/:id", deps.Books.Delete)
	authGroup.POST("/books/:id/sync", middleware.RateLimit(deps.SyncWindow), deps.Books.TriggerSync)
	authGroup.GET("/books/:id/status", deps.Books.Status)
	authGroup.GET("/books/:id/notes", deps.Books.ListNotes)
	authGroup.GET("/notes/:id", deps.Books.GetNote)

	authGroup.PUT("/account/social", deps.Account.SetSocial)
	authGroup.GET("/account/social", deps.Account.GetSocial)
}
