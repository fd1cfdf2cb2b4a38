package migration

import (
	attendancedomain "github.com/ottimo/presence/internal/attendance/domain"
	"github.com/ottimo/presence/internal/config"
	organizationdomain "github.com/ottimo/presence/internal/organization/domain"
	subjectdomain "github.com/ottimo/presence/internal/subject/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite deployments (local dev, tests) build the schema from
			// the models; versioned SQL is postgres-only.
			return conn.AutoMigrate(
				&organizationdomain.Organization{},
				&organizationdomain.Site{},
				&subjectdomain.Subject{},
				&attendancedomain.AttendanceRecord{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
