package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/lokma/internal/audit/domain"
	businessdomain "github.com/smallbiznis/lokma/internal/business/domain"
	commissiondomain "github.com/smallbiznis/lokma/internal/commission/domain"
	invoicedomain "github.com/smallbiznis/lokma/internal/invoice/domain"
	plandomain "github.com/smallbiznis/lokma/internal/plan/domain"
	reservationdomain "github.com/smallbiznis/lokma/internal/reservation/domain"
	tablesessiondomain "github.com/smallbiznis/lokma/internal/tablesession/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// Models lists every persisted type, in dependency order.
func Models() []any {
	return []any{
		&plandomain.Plan{},
		&businessdomain.Business{},
		&commissiondomain.Record{},
		&invoicedomain.InvoiceCounter{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&auditdomain.AuditLog{},
		&tablesessiondomain.Session{},
		&reservationdomain.Reservation{},
		&reservationdomain.TableCardClaim{},
	}
}

// Run brings the schema up to date. Postgres uses the versioned SQL
// migrations; mysql and sqlite fall back to gorm AutoMigrate.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// SeedCounter makes sure the invoice counter row exists so the first
// allocation is a plain increment. Existing values are never touched.
func SeedCounter(conn *gorm.DB, key string, now time.Time) error {
	if key == "" {
		return errors.New("invoice counter key is required")
	}
	counter := invoicedomain.InvoiceCounter{CounterKey: key, Value: 0, UpdatedAt: now}
	return conn.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error
}
