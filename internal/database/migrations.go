package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/ids"
	"github.com/MarcoPoloResearchLab/kudos/internal/points"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const migrationSeedBadgeCatalog = "2024-03-01_seed_badge_catalog"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedBadgeCatalog, apply: seedBadgeCatalog},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(transaction *gorm.DB) error {
			if err := migration.apply(transaction); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return transaction.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

var defaultBadges = []points.NewBadge{
	{Name: "First Kudos", Description: "Earned a first round of recognition from colleagues", PointsRequired: 10},
	{Name: "Team Player", Description: "Consistently reviews and supports teammates", PointsRequired: 50},
	{Name: "Rising Star", Description: "Collected a steady stream of peer likes", PointsRequired: 100},
	{Name: "Culture Champion", Description: "A pillar of the feedback culture", PointsRequired: 250},
}

func seedBadgeCatalog(db *gorm.DB) error {
	idProvider := ids.NewUUIDProvider()
	now := time.Now().UTC()
	for _, entry := range defaultBadges {
		identifier, err := idProvider.NewID()
		if err != nil {
			return err
		}
		badge := points.Badge{
			ID:             identifier,
			Name:           entry.Name,
			Description:    entry.Description,
			PointsRequired: entry.PointsRequired,
			CreatedAt:      now,
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&badge).Error; err != nil {
			return err
		}
	}
	return nil
}
