// Package routes registers the HTTP surface. Authentication and request
// validation are external collaborators; handlers stay thin over the
// service layer.
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/david-jerry/heroku-suibison/internal/api/handlers"
)

// Setup wires all routes onto the engine.
func Setup(router *gin.Engine, users *handlers.UserHandlers, admin *handlers.AdminHandlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/users", users.Register)
		v1.GET("/users/:id", users.GetUser)
		v1.PATCH("/users/:id", users.UpdateProfile)
		v1.GET("/users/:id/activities", users.Activities)
		v1.POST("/users/:id/stake", users.Stake)
		v1.POST("/users/:id/withdraw", users.Withdraw)

		adminGroup := v1.Group("/admin")
		{
			adminGroup.POST("/token-meter", admin.CreateTokenMeter)
			adminGroup.PATCH("/token-meter", admin.UpdateTokenMeter)
			adminGroup.POST("/users/:id/ban", admin.BanUser)
			adminGroup.POST("/pool/members", admin.AddPoolMember)
			adminGroup.GET("/stats", admin.Stats)
		}
	}
}
