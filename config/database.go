package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the configured database and stores it in DB.
func InitDB() {
	db, err := OpenDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	DB = db
	log.Printf("Database connected successfully (driver=%s)", db.Dialector.Name())
}

// OpenDB builds a gorm connection from DB_* environment variables.
// DB_DRIVER=sqlite opens DB_PATH (default pkm-review.db) for local work.
func OpenDB() (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))

	var dialector gorm.Dialector
	switch driver {
	case "", "mysql":
		// Create DSN (Data Source Name)
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			os.Getenv("DB_USERNAME"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_DATABASE"),
		)
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(envOr("DB_PATH", "pkm-review.db"))
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	return gorm.Open(dialector, GormConfig())
}

// GormConfig returns the shared gorm settings.
func GormConfig() *gorm.Config {
	environment := strings.ToLower(os.Getenv("ENVIRONMENT"))
	debugSQL := strings.ToLower(os.Getenv("DEBUG_SQL"))

	// In production, suppress SQL logs unless explicitly re-enabled via DEBUG_SQL=true.
	logLevel := logger.Info
	if environment == "production" && debugSQL != "true" {
		logLevel = logger.Warn
	}

	return &gorm.Config{
		Logger: logger.New(
			log.New(LogWriter, "\r\n", log.LstdFlags),
			logger.Config{LogLevel: logLevel},
		),
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}
