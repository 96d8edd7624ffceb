package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/revaspay/settlement/internal/models"
	"gorm.io/gorm"
)

func createLedgerTablesMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_ledger_tables",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Product{},
				&models.ReferralPartner{},
				&models.Order{},
				&models.OrderItem{},
				&models.PayoutRequest{},
				&models.PayoutHistory{},
				&models.FraudLogEntry{},
				&models.Setting{},
				&models.WebhookEvent{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(
				&models.WebhookEvent{},
				&models.Setting{},
				&models.FraudLogEntry{},
				&models.PayoutHistory{},
				&models.PayoutRequest{},
				&models.OrderItem{},
				&models.Order{},
				&models.ReferralPartner{},
				&models.Product{},
			)
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createLedgerTablesMigration())
}
