package utils

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zhifu/donation-dashboard/models"
)

// DSN builds the driver specific connection string.
func (c DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	}
}

// Dialector returns the gorm dialector for the configured driver.
func (c DatabaseConfig) Dialector() (gorm.Dialector, error) {
	switch c.Driver {
	case "mysql":
		return mysql.Open(c.DSN()), nil
	case "postgres":
		return postgres.Open(c.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}
}

// InitDatabase 初始化数据库连接
func InitDatabase(cfg DatabaseConfig, appEnv string, log zerolog.Logger) (*gorm.DB, error) {
	dialector, err := cfg.Dialector()
	if err != nil {
		return nil, err
	}

	logLevel := logger.Info
	if appEnv == "production" {
		logLevel = logger.Error
	}
	// zerolog's Printf emits at debug level; gorm filters by its own LogLevel.
	gormLog := log.With().Str("component", "gorm").Logger().Level(zerolog.DebugLevel)
	newLogger := logger.New(
		&gormLog,
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	log.Info().
		Str("driver", cfg.Driver).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("dbname", cfg.DBName).
		Msg("connecting to database")

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql.DB")
	}

	sqlDB.SetMaxIdleConns(15)
	sqlDB.SetMaxOpenConns(120)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if cfg.Migrate {
		if err := MigrateDatabase(db, log); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// MigrateDatabase 执行数据库迁移
func MigrateDatabase(db *gorm.DB, log zerolog.Logger) error {
	log.Info().Msg("starting database migration")
	if err := db.AutoMigrate(
		&models.DonationRecord{},
		&models.UserProfile{},
	); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	log.Info().Msg("database migration completed")
	return nil
}
