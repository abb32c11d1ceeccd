package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Schemas are idempotent and applied statement by statement because the
// MySQL driver rejects multi-statement Exec calls by default.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name          VARCHAR(100) NOT NULL,
		email         VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(16)  NOT NULL DEFAULT 'USER',
		is_active     TINYINT(1)   NOT NULL DEFAULT 1,
		created_at    DATETIME(6)  NOT NULL,
		updated_at    DATETIME(6)  NOT NULL,
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id    BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64)    NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_refresh_tokens_hash (token_hash),
		KEY idx_refresh_tokens_user (user_id),
		KEY idx_refresh_tokens_expires (expires_at),
		CONSTRAINT fk_refresh_tokens_user FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS projects (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		title          VARCHAR(100)  NOT NULL,
		description    TEXT          NOT NULL,
		video_url      VARCHAR(500)  NULL,
		video_title    VARCHAR(200)  NULL,
		repository_url VARCHAR(500)  NULL,
		technologies   TEXT          NOT NULL,
		is_featured    TINYINT(1)    NOT NULL DEFAULT 0,
		is_active      TINYINT(1)    NOT NULL DEFAULT 1,
		display_order  INT           NOT NULL DEFAULT 0,
		author_id      BIGINT UNSIGNED NOT NULL,
		created_at     DATETIME(6)   NOT NULL,
		updated_at     DATETIME(6)   NOT NULL,
		KEY idx_projects_active_order (is_active, display_order),
		CONSTRAINT fk_projects_author FOREIGN KEY (author_id) REFERENCES users (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name         VARCHAR(100) NOT NULL,
		email        VARCHAR(255) NOT NULL,
		subject      VARCHAR(200) NULL,
		message      TEXT         NOT NULL,
		phone        VARCHAR(32)  NULL,
		status       VARCHAR(16)  NOT NULL DEFAULT 'PENDING',
		admin_notes  TEXT         NULL,
		responded_at DATETIME(6)  NULL,
		created_at   DATETIME(6)  NOT NULL,
		updated_at   DATETIME(6)  NOT NULL,
		KEY idx_contacts_status (status),
		KEY idx_contacts_created (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT     NOT NULL,
		email         TEXT     NOT NULL UNIQUE,
		password_hash TEXT     NOT NULL,
		role          TEXT     NOT NULL DEFAULT 'USER',
		is_active     INTEGER  NOT NULL DEFAULT 1,
		created_at    DATETIME NOT NULL,
		updated_at    DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER  NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		token_hash TEXT     NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user ON refresh_tokens (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_expires ON refresh_tokens (expires_at)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		title          TEXT     NOT NULL,
		description    TEXT     NOT NULL,
		video_url      TEXT     NULL,
		video_title    TEXT     NULL,
		repository_url TEXT     NULL,
		technologies   TEXT     NOT NULL,
		is_featured    INTEGER  NOT NULL DEFAULT 0,
		is_active      INTEGER  NOT NULL DEFAULT 1,
		display_order  INTEGER  NOT NULL DEFAULT 0,
		author_id      INTEGER  NOT NULL REFERENCES users (id),
		created_at     DATETIME NOT NULL,
		updated_at     DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_active_order ON projects (is_active, display_order)`,
	`CREATE TABLE IF NOT EXISTS contacts (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		name         TEXT     NOT NULL,
		email        TEXT     NOT NULL,
		subject      TEXT     NULL,
		message      TEXT     NOT NULL,
		phone        TEXT     NULL,
		status       TEXT     NOT NULL DEFAULT 'PENDING',
		admin_notes  TEXT     NULL,
		responded_at DATETIME NULL,
		created_at   DATETIME NOT NULL,
		updated_at   DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_status ON contacts (status)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_created ON contacts (created_at)`,
}

// Migrate applies the schema for driver.  Running it twice is a no-op.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case "mysql":
		stmts = mysqlSchema
	case "sqlite":
		stmts = sqliteSchema
	default:
		return fmt.Errorf("migrate: unsupported driver %q", driver)
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
