package database

import (
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/kudos/internal/points"
	"go.uber.org/zap"
)

func TestOpenSeedsBadgeCatalogOnce(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "kudos.db")
	config := Config{Driver: DriverSQLite, DSN: databasePath}

	database, err := Open(config, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	var badges []points.Badge
	if err := database.Order("points_required ASC").Find(&badges).Error; err != nil {
		testContext.Fatalf("failed to list badges: %v", err)
	}
	if len(badges) != len(defaultBadges) {
		testContext.Fatalf("expected %d seeded badges, got %d", len(defaultBadges), len(badges))
	}
	if badges[0].Name != "First Kudos" || badges[0].ID == "" {
		testContext.Fatalf("unexpected first badge %+v", badges[0])
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationSeedBadgeCatalog).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}

	if err := database.Where("name = ?", "Rising Star").Delete(&points.Badge{}).Error; err != nil {
		testContext.Fatalf("failed to delete badge: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		testContext.Fatalf("failed to reach sql handle: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		testContext.Fatalf("failed to close database: %v", err)
	}

	reopened, err := Open(config, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to reopen database: %v", err)
	}
	var count int64
	if err := reopened.Model(&points.Badge{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count badges: %v", err)
	}
	if count != int64(len(defaultBadges)-1) {
		testContext.Fatalf("expected the seed to run once, found %d badges", count)
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Config{Driver: "mysql", DSN: "kudos"}, nil); err == nil {
		testContext.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: DriverSQLite, DSN: " "}, nil); err == nil {
		testContext.Fatalf("expected error for empty dsn")
	}
}
