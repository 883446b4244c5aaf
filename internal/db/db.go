package db

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	"github.com/USA-RedDragon/rpc-tester/internal/db/models"
	"github.com/glebarez/sqlite"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultMySQLPort    = 3306
	defaultPostgresPort = 5432
)

func MakeDB(config *config.Config) (db *gorm.DB, err error) {
	dialector, err := dialectorFor(config.Persistence.Database)
	if err != nil {
		return nil, err
	}

	db, err = gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return db, fmt.Errorf("failed to open database: %w", err)
	}
	if config.HTTP.Tracing.Enabled {
		if err = db.Use(otelgorm.NewPlugin()); err != nil {
			return db, fmt.Errorf("failed to trace database: %w", err)
		}
	}

	err = db.AutoMigrate(&models.HistoryEntry{})
	if err != nil {
		return db, fmt.Errorf("failed to migrate database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return db, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxIdleConns(runtime.GOMAXPROCS(0))
	const connsPerCPU = 10
	sqlDB.SetMaxOpenConns(runtime.GOMAXPROCS(0) * connsPerCPU)
	const maxIdleTime = 10 * time.Minute
	sqlDB.SetConnMaxIdleTime(maxIdleTime)

	return
}

func dialectorFor(database config.Database) (gorm.Dialector, error) {
	switch database.Driver {
	case config.DatabaseDriverSQLite:
		dsn := database.Database + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		if database.ExtraParameters != "" {
			dsn += "&" + strings.TrimPrefix(database.ExtraParameters, "&")
		}
		return sqlite.Open(dsn), nil
	case config.DatabaseDriverMySQL:
		port := database.Port
		if port == 0 {
			port = defaultMySQLPort
		}
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			database.Username, database.Password, database.Host, port, database.Database)
		if database.ExtraParameters != "" {
			dsn += "&" + strings.TrimPrefix(database.ExtraParameters, "&")
		}
		return mysql.Open(dsn), nil
	case config.DatabaseDriverPostgres:
		port := database.Port
		if port == 0 {
			port = defaultPostgresPort
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			database.Host, port, database.Username, database.Password, database.Database)
		if database.ExtraParameters != "" {
			dsn += " " + database.ExtraParameters
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrDatabaseDriverInvalid, database.Driver)
	}
}
