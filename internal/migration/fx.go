package migration

import (
	"github.com/bwmarrin/snowflake"
	authdomain "github.com/guardline/aegis/internal/auth/domain"
	bookingdomain "github.com/guardline/aegis/internal/booking/domain"
	"github.com/guardline/aegis/internal/config"
	invoicedomain "github.com/guardline/aegis/internal/invoice/domain"
	paymentdomain "github.com/guardline/aegis/internal/payment/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, genID *snowflake.Node) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// SQLite and MySQL installs are dev setups; AutoMigrate keeps
			// them in step without maintaining per-dialect SQL.
			if err := conn.AutoMigrate(
				&bookingdomain.Booking{},
				&invoicedomain.Invoice{},
				&invoicedomain.InvoiceSequence{},
				&paymentdomain.EventRecord{},
				&authdomain.AdminUser{},
				&authdomain.AdminSession{},
			); err != nil {
				return err
			}
		}

		return EnsureBootstrapAdmin(conn, genID, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
	}),
)
