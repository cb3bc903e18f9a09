package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/config"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

func Connect(cfg *config.Config) *gorm.DB {
	db, err := Open(cfg.DatabaseDriver, dsnFor(cfg), cfg.DatabaseLogLevel)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("Failed to auto migrate: %v", err)
	}

	return db
}

// Open opens a gorm connection for driver. Errors are translated so callers can match
// gorm.ErrDuplicatedKey, and timestamps are recorded in UTC.
func Open(driver, dsn, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(logLevel),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.APIKey{},
		&models.ExerciseCategory{},
		&models.Event{},
		&models.Occurrence{},
		&models.Registration{},
		&models.Attendance{},
		&models.WellnessAssessment{},
	)
}

// OpenInMemory returns a migrated in-memory sqlite database. The pool is pinned to a
// single connection because every sqlite connection to ":memory:" is its own database.
func OpenInMemory() (*gorm.DB, error) {
	db, err := Open("sqlite", ":memory:", "silent")
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenFile returns a migrated sqlite database at path, opened with the production DSN
// and shared by up to maxConns connections.
func OpenFile(path string, maxConns int) (*gorm.DB, error) {
	db, err := Open("sqlite", sqliteDSN(path), "silent")
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxConns)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// dsnFor builds the sqlite DSN from DATABASE_PATH unless DATABASE_DSN is set.
func dsnFor(cfg *config.Config) string {
	if cfg.DatabaseDSN != "" {
		return cfg.DatabaseDSN
	}
	return sqliteDSN(cfg.DatabasePath)
}

// Transactions begin IMMEDIATE so writers serialize at BEGIN instead of failing on
// lock upgrade.
func sqliteDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=10000&_txlock=immediate&_foreign_keys=1", path)
}
