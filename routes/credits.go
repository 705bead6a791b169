package routes

import (
	"github.com/gin-gonic/gin"
)

func CreditsRoutes(r *gin.Engine, h Handlers) {
	creditRoutes := r.Group("/credits")
	{
		creditRoutes.POST("/annual-refresh", h.Credits.AnnualRefresh)
		creditRoutes.POST("/free-refresh", h.Credits.FreeRefresh)
	}
}
