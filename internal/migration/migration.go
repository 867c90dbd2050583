package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	identitydomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/identity/domain"
	paymentdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/payment/domain"
	promptdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/prompt/domain"
	recordingdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/recording/domain"
	userdomain "github.com/LyngualLabs/SpeechAppBackendV2/internal/user/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

const migrationsDir = "sql"

//go:embed sql/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded PostgreSQL migrations.
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
	// migrator.Close would close the shared *sql.DB.

	return nil
}

// Models lists every table the service owns, in dependency order.
func Models() []any {
	return []any{
		&userdomain.User{},
		&identitydomain.Session{},
		&promptdomain.Prompt{},
		&recordingdomain.Recording{},
		&paymentdomain.Batch{},
		&paymentdomain.BatchItem{},
	}
}

// AutoMigrate creates the schema from the gorm models. Used for sqlite and mysql,
// which the embedded SQL does not target, and by tests.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
