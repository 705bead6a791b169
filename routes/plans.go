package routes

import (
	"github.com/gin-gonic/gin"
)

func PlansRoutes(r *gin.Engine, h Handlers) {
	r.GET("/plans", h.Plans.List)
	r.POST("/billing/summary", h.Plans.Summary)
}
