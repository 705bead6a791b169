package main

import (
	"log"

	"github.com/matchharper/harper-beta-sub001/billing"
	lsclient "github.com/matchharper/harper-beta-sub001/billing/lemonsqueezy"
	polarclient "github.com/matchharper/harper-beta-sub001/billing/polar"
	"github.com/matchharper/harper-beta-sub001/config"
	"github.com/matchharper/harper-beta-sub001/db"
	_ "github.com/matchharper/harper-beta-sub001/docs"
	"github.com/matchharper/harper-beta-sub001/handlers/credits"
	"github.com/matchharper/harper-beta-sub001/handlers/lemonsqueezy"
	"github.com/matchharper/harper-beta-sub001/handlers/ping"
	"github.com/matchharper/harper-beta-sub001/handlers/plans"
	"github.com/matchharper/harper-beta-sub001/handlers/polar"
	"github.com/matchharper/harper-beta-sub001/repository"
	"github.com/matchharper/harper-beta-sub001/routes"

	"github.com/gin-gonic/gin"
)

// @title MatchHarper Billing API
// @version 1.0
// @description Subscription, webhook reconciliation and credit ledger service
// @host localhost:8080
// @BasePath /
func main() {

	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading configuration: ", err)
	}

	gormDB, err := db.Init(cfg)
	if err != nil {
		log.Fatal("Error initializing the database: ", err)
	}

	planRepo := repository.NewPlanRepository(gormDB)
	paymentRepo := repository.NewPaymentRepository(gormDB)
	creditRepo := repository.NewCreditRepository(gormDB)
	eventRepo := repository.NewWebhookEventRepository(gormDB)

	// Provider clients stay nil when the credentials are absent; the
	// handlers answer 500 for the affected endpoints instead of the whole
	// service refusing to start.
	var lemonClient *lsclient.Client
	if cfg.LemonSqueezy.APIKey != "" {
		lemonClient = lsclient.New(cfg.LemonSqueezy.BaseURL, cfg.LemonSqueezy.APIKey)
	}
	var polarGateway billing.SubscriptionGateway
	if cfg.Polar.AccessToken != "" {
		polarGateway = polarclient.New(cfg.Polar.BaseURL(), cfg.Polar.AccessToken)
	}

	h := routes.Handlers{
		Ping:    ping.New(),
		Plans:   plans.NewHandler(planRepo, paymentRepo, creditRepo),
		Credits: credits.NewHandler(planRepo, paymentRepo, creditRepo),
		LemonWebhook: lemonsqueezy.NewWebhookHandler(
			planRepo, paymentRepo, creditRepo, eventRepo, cfg.LemonSqueezy.SigningSecret),
		PolarWebhook: polar.NewWebhookHandler(
			planRepo, paymentRepo, creditRepo, eventRepo, polarGateway,
			cfg.Polar.WebhookSecret, cfg.Polar.PlanMap()),
		PolarCheckout:   polar.NewCheckoutHandler(paymentRepo, polarGateway, cfg.Polar.Products, cfg.Polar.SuccessURL),
		PolarCancel:     polar.NewCancelHandler(paymentRepo, polarGateway),
		PolarChangePlan: polar.NewChangePlanHandler(paymentRepo, polarGateway, cfg.Polar.Products),
	}
	if lemonClient != nil {
		h.LemonCancel = lemonsqueezy.NewCancelHandler(paymentRepo, lemonClient)
	} else {
		h.LemonCancel = lemonsqueezy.NewCancelHandler(paymentRepo, nil)
	}

	r := routes.SetupRouter(h)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("Error starting the server: ", err)
	}
}
