package database

import (
	"fmt"

	"plane-spot-system/config"
	"plane-spot-system/logger"
	"plane-spot-system/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the database configured by DB_TYPE / DATABASE_URL.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DBType {
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		// DATABASE_URL is the file path (or file::memory:)
		dialector = sqlite.Open(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBType == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
		}
		// sqlite serialises writers anyway
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Logger.Info().Str("db_type", cfg.DBType).Msg("connected to database")
	return db, nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Spot{},
		&models.UserBadge{},
		&models.UserAchievement{},
		&models.WalletMirror{},
		&models.Follow{},
		&models.Subscription{},
	)
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
