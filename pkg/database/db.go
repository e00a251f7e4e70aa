package database

import (
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/citytransit/depot-scheduler-go/pkg/logger"
	"github.com/citytransit/depot-scheduler-go/pkg/models"
)

// InitDB opens the backing store and migrates the schema. DATABASE_URL
// selects postgres; otherwise a sqlite file at DATA_PATH (default
// depot_scheduler.db) is used.
func InitDB() *gorm.DB {
	log := logger.New("database")

	var db *gorm.DB
	var err error

	dsn := os.Getenv("DATABASE_URL")
	if dsn != "" {
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	} else {
		dbPath := os.Getenv("DATA_PATH")
		if dbPath == "" {
			dbPath = "depot_scheduler.db"
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	}

	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	if err := Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}

	return db
}

// Migrate runs auto-migration for every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Settings{},
		&models.Crew{},
		&models.Bus{},
		&models.Route{},
		&models.Duty{},
		&models.Assignment{},
		&models.MasterUser{},
		&models.Counter{},
	)
}
