package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/username/commissioncalc/backend/src/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// timeLayout is how timestamps are stored in TEXT columns.
const timeLayout = time.RFC3339Nano

// InitDB opens (creating if needed) the SQLite database at databasePath and
// applies pending migrations.
func InitDB(databasePath string) (*sql.DB, error) {
	if dir := filepath.Dir(databasePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", databasePath, err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY between our own goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database at %s: %w", databasePath, err)
	}

	logger.L.Info("Checking database migrations", "databasePath", databasePath)
	if err := migrateDatabase(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrateDatabase(db *sql.DB) error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	startTime := time.Now()
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.L.Info("No new migrations to apply")
		return nil
	}
	if err != nil {
		version, dirty, _ := m.Version()
		logger.L.Error("Failed to apply migrations", "error", err, "version", version, "dirty", dirty)
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.L.Info("Database migrations applied", "version", version, "elapsed", time.Since(startTime).String())
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		logger.L.Warn("Unparseable timestamp in database", "value", s, "error", err)
		return time.Time{}
	}
	return t
}
