package db

import (
	"fmt"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zulandar/floorboard/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the driver-specific connection string for cfg. An empty
// database name connects to the server without selecting a database.
func DSN(cfg config.DatabaseConfig) string {
	switch cfg.Driver {
	case config.DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s sslmode=disable", cfg.Host, cfg.Port, cfg.User)
		if cfg.Password != "" {
			dsn += " password=" + cfg.Password
		}
		if cfg.Name != "" {
			dsn += " dbname=" + cfg.Name
		}
		return dsn
	case config.DriverSQLite:
		return cfg.Path
	default:
		mc := gomysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Name
		mc.ParseTime = true
		return mc.FormatDSN()
	}
}

func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := DSN(cfg)
	switch cfg.Driver {
	case config.DriverMySQL, "":
		return mysql.Open(dsn), nil
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	case config.DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// Connect opens a GORM connection described by cfg.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s %s: %w", cfg.Driver, target(cfg), err)
	}
	if cfg.Driver == config.DriverSQLite {
		// SQLite allows one writer; serialising through one connection keeps
		// in-memory databases shared across the pool.
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return db, nil
}

// ConnectAdmin opens a connection to the database server without selecting
// a database, used for CREATE DATABASE operations. SQLite has no server and
// returns nil.
func ConnectAdmin(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == config.DriverSQLite {
		return nil, nil
	}
	admin := cfg
	admin.Name = ""
	if cfg.Driver == config.DriverPostgres {
		admin.Name = "postgres"
	}
	db, err := Connect(admin)
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s: %w", target(cfg), err)
	}
	return db, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, driver, name string) error {
	switch driver {
	case config.DriverSQLite:
		return nil
	case config.DriverPostgres:
		var n int64
		if err := adminDB.Raw("SELECT count(*) FROM pg_database WHERE datname = ?", name).Scan(&n).Error; err != nil {
			return fmt.Errorf("db: check database %s: %w", name, err)
		}
		if n > 0 {
			return nil
		}
		if err := adminDB.Exec(fmt.Sprintf(`CREATE DATABASE "%s"`, name)).Error; err != nil {
			return fmt.Errorf("db: create database %s: %w", name, err)
		}
		return nil
	default:
		if err := adminDB.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)).Error; err != nil {
			return fmt.Errorf("db: create database %s: %w", name, err)
		}
		return nil
	}
}

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory() (*gorm.DB, error) {
	return Connect(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
}

func target(cfg config.DatabaseConfig) string {
	if cfg.Driver == config.DriverSQLite {
		return cfg.Path
	}
	return fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
}
