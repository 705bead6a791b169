package routes

import (
	"github.com/gin-gonic/gin"
)

func BillingRoutes(r *gin.Engine, h Handlers) {
	lemonRoutes := r.Group("/lemonsqueezy")
	{
		lemonRoutes.POST("/webhook", h.LemonWebhook.Handle)
		lemonRoutes.POST("/cancel", h.LemonCancel.Handle)
	}

	polarRoutes := r.Group("/polar")
	{
		polarRoutes.POST("/webhook", h.PolarWebhook.Handle)
		polarRoutes.POST("/checkout", h.PolarCheckout.Handle)
		polarRoutes.POST("/cancel", h.PolarCancel.Handle)
		polarRoutes.POST("/change-plan", h.PolarChangePlan.Handle)
	}
}
