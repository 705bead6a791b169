package routes

import (
	"time"

	"github.com/matchharper/harper-beta-sub001/handlers/credits"
	"github.com/matchharper/harper-beta-sub001/handlers/lemonsqueezy"
	"github.com/matchharper/harper-beta-sub001/handlers/ping"
	"github.com/matchharper/harper-beta-sub001/handlers/plans"
	"github.com/matchharper/harper-beta-sub001/handlers/polar"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handlers carries every constructed handler; main wires them once and the
// route files only bind paths.
type Handlers struct {
	Ping            *ping.Handler
	Plans           *plans.Handler
	Credits         *credits.Handler
	LemonWebhook    *lemonsqueezy.WebhookHandler
	LemonCancel     *lemonsqueezy.CancelHandler
	PolarWebhook    *polar.WebhookHandler
	PolarCheckout   *polar.CheckoutHandler
	PolarCancel     *polar.CancelHandler
	PolarChangePlan *polar.ChangePlanHandler
}

func SetupRouter(h Handlers) *gin.Engine {

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	PingRoutes(r, h)
	PlansRoutes(r, h)
	CreditsRoutes(r, h)
	BillingRoutes(r, h)

	return r
}
