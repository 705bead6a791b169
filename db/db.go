package db

import (
	"github.com/matchharper/harper-beta-sub001/config"
	"github.com/matchharper/harper-beta-sub001/models"
	"github.com/matchharper/harper-beta-sub001/utils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Init opens the Postgres connection and migrates the billing tables.
// The handle is returned to the caller and threaded through the
// repositories; there is deliberately no package-level *gorm.DB.
func Init(cfg *config.Config) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: utils.GetGormLogger(),
	})
	if err != nil {
		utils.LogError(err, "Error connecting to the database")
		return nil, err
	}

	if err := Migrate(gormDB); err != nil {
		utils.LogError(err, "Error migrating database")
		return nil, err
	}

	utils.LogSuccess("Database connection successful")
	return gormDB, nil
}

// Migrate creates or updates the billing schema. Shared with the test
// helpers so the in-memory database matches production.
func Migrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&models.Plan{},
		&models.Payment{},
		&models.Credit{},
		&models.CreditHistory{},
		&models.WebhookEvent{},
	)
}
