package migration

import (
	"github.com/smallbiznis/lokma/internal/clock"
	"github.com/smallbiznis/lokma/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, billing *config.BillingConfigHolder, clk clock.Clock, log *zap.Logger) error {
		if err := Run(conn); err != nil {
			return err
		}
		key := billing.Get().InvoiceCounterKey
		if err := SeedCounter(conn, key, clk.Now()); err != nil {
			return err
		}
		log.Info("schema ready", zap.String("dialect", conn.Dialector.Name()), zap.String("invoice_counter", key))
		return nil
	}),
)
