package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Postgres and SQLite both support partial indexes with this syntax.
func createOpenPayoutIndexMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_open_payout_index",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE UNIQUE INDEX IF NOT EXISTS idx_payout_open_partner
				ON payout_requests (partner_id)
				WHERE status IN ('pending', 'processing') AND deleted_at IS NULL
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec("DROP INDEX IF EXISTS idx_payout_open_partner").Error
		},
	}
}

func init() {
	migrationsList = append(migrationsList, createOpenPayoutIndexMigration())
}
