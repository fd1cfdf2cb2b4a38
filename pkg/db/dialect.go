package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/ottimo/presence/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Dialect selects the GORM dialector from configuration. The sqlite
// dialect is pure Go so the same binary runs on devices without cgo.
func Dialect(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
			cfg.DBSSLMode,
		)), nil
	case "sqlite":
		return sqlite.Open(cfg.DBName), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}
