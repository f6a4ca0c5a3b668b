package database

import (
	"log"
	"os"
	"time"

	"motorhub-backend/internal/infrastructure/store"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// loggerConfig keeps gorm quiet except for slow queries and real failures.
// Absent rows are an ordinary outcome for the key-value table.
func loggerConfig() logger.Config {
	return logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	}
}

// Open opens a GORM DB from a postgres DSN.
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind connection poolers such as PgBouncer.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.New(log.New(os.Stderr, "", log.LstdFlags), loggerConfig())})
}

// AutoMigrate creates the key-value table the SQL store backend lives in.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&store.Entry{})
}
