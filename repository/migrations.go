package repository

import (
	"context"
	"log"

	"github.com/clickwars/clickwars/models"
	"github.com/clickwars/clickwars/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// migration is one named, idempotent schema step. Applied names are recorded
// in the migrations ledger table so reruns at startup are no-ops.
type migration struct {
	Name string
	Run  func(tx *gorm.DB) error
}

var migrations = []migration{
	{
		Name: "001_create_counters",
		Run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.Counter{})
		},
	},
	{
		Name: "002_create_counter_history",
		Run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.CounterHistory{})
		},
	},
	{
		Name: "003_seed_counters",
		Run: func(tx *gorm.DB) error {
			for _, color := range models.AllCounterColors {
				counter := models.Counter{
					Color:     color,
					Count:     0,
					UpdatedAt: utils.UTCNow(),
				}
				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "color"}},
					DoNothing: true,
				}).Create(&counter).Error
				if err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// RunMigrations applies all pending migrations in order. Each step runs in
// its own transaction together with its ledger row, so a failed step leaves
// neither the schema change nor the ledger entry behind.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&models.Migration{}); err != nil {
		return err
	}

	for _, m := range migrations {
		var applied int64
		err := db.WithContext(ctx).Model(&models.Migration{}).
			Where("name = ?", m.Name).
			Count(&applied).Error
		if err != nil {
			return err
		}
		if applied > 0 {
			continue
		}

		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := m.Run(tx); err != nil {
				return err
			}
			return tx.Create(&models.Migration{
				Name:      m.Name,
				AppliedAt: utils.UTCNow(),
			}).Error
		})
		if err != nil {
			return err
		}

		log.Printf("Applied migration %s", m.Name)
	}

	return nil
}
