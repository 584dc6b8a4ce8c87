package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/pxwallet/internal/audit/domain"
	escrowdomain "github.com/smallbiznis/pxwallet/internal/escrow/domain"
	ledgerdomain "github.com/smallbiznis/pxwallet/internal/ledger/domain"
	serviceaccountdomain "github.com/smallbiznis/pxwallet/internal/serviceaccount/domain"
	subscriptiondomain "github.com/smallbiznis/pxwallet/internal/subscription/domain"
	transferdomain "github.com/smallbiznis/pxwallet/internal/transfer/domain"
	walletdomain "github.com/smallbiznis/pxwallet/internal/wallet/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// Migrate brings the schema up to date for whichever dialect conn speaks.
// Postgres runs the versioned SQL files, everything else is auto-migrated from the models.
func Migrate(conn *gorm.DB) error {
	if conn.Dialector.Name() == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}
	return AutoMigrate(conn)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	source, err := iofs.New(embeddedMigrations, migrationsDir)
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

// AutoMigrate creates the tables from the gorm models. Used for sqlite, mysql and tests.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&walletdomain.Wallet{},
		&escrowdomain.EscrowAccount{},
		&ledgerdomain.Transaction{},
		&transferdomain.InternalTransfer{},
		&serviceaccountdomain.Account{},
		&subscriptiondomain.Subscription{},
		&auditdomain.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	// mysql has no partial indexes; the checkout re-check inside its transaction covers it there.
	if conn.Dialector.Name() == "mysql" {
		return nil
	}
	return conn.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_subscriptions_active
		 ON subscriptions (user_id, service_key, external_account_email, plan_name)
		 WHERE status = 'ACTIVE'`,
	).Error
}

// EmbeddedMigrations exposes the versioned SQL files.
func EmbeddedMigrations() fs.FS {
	return embeddedMigrations
}
