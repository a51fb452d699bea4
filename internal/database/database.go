package database

import (
	"example.com/jodi/services/whatsapp/config"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the PostgreSQL connection. When localHost is non-empty the
// connection goes through the tunnel's loopback endpoint instead of the
// configured database host.
func Connect(cfg config.DatabaseConfig, localHost string, localPort int) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN(localHost, localPort)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// A single synchronous run needs no pool to speak of.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get DB instance")
	}
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(2)

	return db, nil
}

// Close releases the underlying connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
