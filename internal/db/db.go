package db

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Init opens the configured database. SQLite is the default for single-node
// deployments; anything shared runs Postgres through pgx.
func Init(driver, connection string) (*sqlx.DB, error) {
	if driver == "sqlite" {
		// The connection string is a file path, so its directory has to
		// exist before the driver can create the database.
		if err := os.MkdirAll(filepath.Dir(connection), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	// Connect pings, so a successful return means the database is reachable.
	database, err := sqlx.Connect(driver, connection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// Requests spend most of their time waiting on provider APIs rather
	// than queries; a modest pool absorbs the burst when several report
	// jobs land at once.
	database.SetMaxOpenConns(25)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(5 * time.Minute)

	slog.Info("database connected", "driver", driver)
	return database, nil
}

func Close(database *sqlx.DB) error {
	if database == nil {
		return nil
	}
	return database.Close()
}
