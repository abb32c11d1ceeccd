package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver (embedded/dev/test)
	_ "github.com/go-sql-driver/mysql"

	"github.com/iliyamo/portfolio-backend/internal/config"
)

// Open connects to the configured driver and verifies the connection.
// The returned handle is owned by the caller, who must Close it on
// shutdown.
func Open(ctx context.Context, cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DataSource())
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := configure(ctx, db, cfg.Driver, cfg.MaxOpenConns, cfg.ConnLifetime); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLiteMemory opens a private in-memory SQLite database with the
// schema applied.  Tests and local tooling use it.
func OpenSQLiteMemory(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	if err := configure(ctx, db, "sqlite", 1, 0); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := Migrate(ctx, db, "sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func configure(ctx context.Context, db *sql.DB, driver string, maxOpen int, lifetime time.Duration) error {
	if driver == "sqlite" {
		// A single connection serialises writers; an in-memory database
		// also lives and dies with its connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		// Pool settings
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
		db.SetConnMaxLifetime(lifetime)
	}

	// Ping with timeout
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping %s: %w", driver, err)
	}
	if driver == "sqlite" {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			return fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return nil
}

// Ping reports whether the database answers within two seconds.
func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}
