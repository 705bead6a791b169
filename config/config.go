package config

import (
	"encoding/json"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the service reads from the environment.
// It is parsed once at startup and passed down explicitly; nothing else
// in the codebase reads os.Getenv.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DB_URL,required"`

	LemonSqueezy LemonSqueezyConfig `envPrefix:"LEMON_SQUEEZY_"`
	Polar        PolarConfig        `envPrefix:"POLAR_"`
}

type LemonSqueezyConfig struct {
	APIKey        string `env:"API_KEY"`
	SigningSecret string `env:"SIGNING_SECRET"`
	BaseURL       string `env:"API_URL" envDefault:"https://api.lemonsqueezy.com"`
}

type PolarConfig struct {
	AccessToken   string `env:"ACCESS_TOKEN"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	// Server selects the Polar environment: "production" or "sandbox".
	Server     string `env:"SERVER" envDefault:"production"`
	SuccessURL string `env:"SUCCESS_URL" envDefault:"https://matchharper.com/billing/success?checkout_id={CHECKOUT_ID}"`

	// PlanMapJSON optionally maps Polar product/price ids to plan ids for
	// products that are not recorded as a plan's variant id.
	PlanMapJSON string `env:"PLAN_MAP_JSON"`

	Products ProductCatalog `envPrefix:"PRODUCT_"`

	planMap map[string]string
}

// ProductCatalog maps (plan tier, billing interval) to Polar product ids.
// An empty entry means the combination is not sold.
type ProductCatalog struct {
	ProMonthly string `env:"PRO_MONTHLY"`
	ProYearly  string `env:"PRO_YEARLY"`
	MaxMonthly string `env:"MAX_MONTHLY"`
	MaxYearly  string `env:"MAX_YEARLY"`
}

// ProductID resolves a plan key and billing interval to the configured
// Polar product id. Returns "" when the combination is not configured.
func (p ProductCatalog) ProductID(planKey, billing string) string {
	switch planKey + "/" + billing {
	case "pro/monthly":
		return p.ProMonthly
	case "pro/yearly":
		return p.ProYearly
	case "max/monthly":
		return p.MaxMonthly
	case "max/yearly":
		return p.MaxYearly
	}
	return ""
}

// BaseURL returns the Polar API root for the configured server.
func (p PolarConfig) BaseURL() string {
	if p.Server == "sandbox" {
		return "https://sandbox-api.polar.sh"
	}
	return "https://api.polar.sh"
}

// PlanMap returns the parsed product-id to plan-id overrides.
func (p *PolarConfig) PlanMap() map[string]string {
	return p.planMap
}

// Load reads .env (when present) and the process environment into a Config.
func Load() (*Config, error) {
	// Same behavior as before: a missing .env file is fine in production
	// where the variables come from the platform.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	cfg.Polar.planMap = map[string]string{}
	if cfg.Polar.PlanMapJSON != "" {
		if err := json.Unmarshal([]byte(cfg.Polar.PlanMapJSON), &cfg.Polar.planMap); err != nil {
			return nil, fmt.Errorf("parsing POLAR_PLAN_MAP_JSON: %w", err)
		}
	}

	return cfg, nil
}
