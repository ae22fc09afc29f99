package db

import (
	"fmt"
	"time"

	"crates/config"
	"crates/logger"
	"crates/model"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the database selected by cfg.DBDriver.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DBDriver {
	case "mysql", "":
		return openMySQL(cfg)
	case "sqlite":
		return OpenSQLite(cfg.SQLitePath, cfg.DBLogQueries)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// MySQLDSN builds the driver DSN from the connection settings.
func MySQLDSN(cfg *config.Config) string {
	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.DBUser
	dsnCfg.Passwd = cfg.DBPassword
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%s", cfg.DBHost, cfg.DBPort)
	dsnCfg.DBName = cfg.DBName
	dsnCfg.ParseTime = true
	// RowsAffected counts matched rows, so a no-op update still finds the row
	dsnCfg.ClientFoundRows = true
	dsnCfg.Loc = time.UTC
	dsnCfg.Params = map[string]string{"charset": "utf8mb4"}
	return dsnCfg.FormatDSN()
}

func openMySQL(cfg *config.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(gormmysql.Open(MySQLDSN(cfg)), gormConfig(cfg.DBLogQueries))
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("Connected to MySQL", logger.String("host", cfg.DBHost), logger.String("db", cfg.DBName))
	return gdb, nil
}

// OpenSQLite opens a SQLite database. ":memory:" is pinned to a single
// connection so every query sees the same database.
func OpenSQLite(path string, logQueries bool) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(path), gormConfig(logQueries))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return gdb, nil
}

func gormConfig(logQueries bool) *gorm.Config {
	mode := gormlogger.Silent
	if logQueries {
		mode = gormlogger.Info
	}
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(mode),
		// duplicate key errors surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	}
}

// AutoMigrate creates or updates the tables for every persisted model.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&model.User{}, &model.Collection{}, &model.Album{}); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
